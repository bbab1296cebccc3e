package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"codeshare/internal/core/domain"
	"codeshare/internal/core/services"
	"codeshare/internal/infrastructure/collab"
	"codeshare/internal/infrastructure/pubsub"
	"codeshare/pkg/tracing"
	"codeshare/pkg/validation"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Should be configured properly for production
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// InboundMessage is the envelope every client frame arrives in. The session
// id scopes the event; the payload schema depends on the type.
type InboundMessage struct {
	Type      string           `json:"type"`
	SessionID domain.SessionID `json:"sessionId,omitempty"`
	Payload   json.RawMessage  `json:"payload,omitempty"`
}

// OutboundFrame wraps a topic broadcast for delivery to one subscriber.
type OutboundFrame struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
}

type joinPayload struct {
	UserID   domain.UserID `json:"userId"`
	Username string        `json:"username"`
}

type subscribePayload struct {
	Topic string `json:"topic"`
}

// client is one connected participant: its identity, its topic
// subscriptions, and the sessions it has joined (for leave-on-disconnect).
type client struct {
	conn     *websocket.Conn
	userID   domain.UserID
	username string

	send   chan pubsub.Message
	subs   map[string]pubsub.SubscriberID
	joined map[domain.SessionID]struct{}
}

// WebSocketServer is the transport boundary of the collaboration layer. It
// decodes inbound envelopes, hands them to the router, and pumps topic
// broadcasts from the broker back to each subscribed connection.
type WebSocketServer struct {
	router *collab.Router
	broker *pubsub.Broker
	auth   services.AuthService

	clients map[domain.UserID]*client
	mu      sync.RWMutex

	pingInterval   time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	sendBuffer     int
	maxMessageSize int64
	messageRate    rate.Limit
	messageBurst   int

	logger *zap.SugaredLogger
}

func NewWebSocketServer(
	router *collab.Router,
	broker *pubsub.Broker,
	auth services.AuthService,
	logger *zap.SugaredLogger,
) *WebSocketServer {
	return &WebSocketServer{
		router:         router,
		broker:         broker,
		auth:           auth,
		clients:        make(map[domain.UserID]*client),
		pingInterval:   30 * time.Second,
		readTimeout:    60 * time.Second,
		writeTimeout:   10 * time.Second,
		sendBuffer:     64,
		maxMessageSize: 64 * 1024,
		logger:         logger,
	}
}

// SetPingInterval sets the keep-alive ping interval.
func (s *WebSocketServer) SetPingInterval(interval time.Duration) { s.pingInterval = interval }

// SetReadTimeout sets the read (pong) deadline.
func (s *WebSocketServer) SetReadTimeout(timeout time.Duration) { s.readTimeout = timeout }

// SetWriteTimeout sets the per-frame write deadline.
func (s *WebSocketServer) SetWriteTimeout(timeout time.Duration) { s.writeTimeout = timeout }

// SetSendBuffer sets the per-connection outbound buffer size.
func (s *WebSocketServer) SetSendBuffer(n int) { s.sendBuffer = n }

// SetMaxMessageSize caps inbound frame size in bytes; 0 disables the cap.
func (s *WebSocketServer) SetMaxMessageSize(n int64) { s.maxMessageSize = n }

// SetMessageRateLimit throttles inbound messages per connection; 0 disables.
func (s *WebSocketServer) SetMessageRateLimit(perSecond float64, burst int) {
	s.messageRate = rate.Limit(perSecond)
	s.messageBurst = burst
}

func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	userID, username, err := s.identify(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	c := &client{
		conn:     conn,
		userID:   userID,
		username: username,
		send:     make(chan pubsub.Message, s.sendBuffer),
		subs:     make(map[string]pubsub.SubscriberID),
		joined:   make(map[domain.SessionID]struct{}),
	}

	s.mu.Lock()
	existing, isReconnect := s.clients[userID]
	if isReconnect && existing != nil {
		existing.conn.Close()
		s.logger.Infow("closing old connection for reconnecting user", "user_id", userID)
	}
	s.clients[userID] = c
	s.mu.Unlock()

	s.logger.Infow("user connected", "user_id", userID, "username", username, "reconnect", isReconnect)

	if s.maxMessageSize > 0 {
		conn.SetReadLimit(s.maxMessageSize)
	}
	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan InboundMessage, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var msg InboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			conn.SetReadDeadline(time.Now().Add(s.readTimeout))
			messageChan <- msg
		}
	}()

	var limiter *rate.Limiter
	if s.messageRate > 0 {
		limiter = rate.NewLimiter(s.messageRate, s.messageBurst)
	}

	for {
		select {
		case msg := <-messageChan:
			if limiter != nil && !limiter.Allow() {
				s.sendError(c, "message rate limit exceeded")
				continue
			}
			if err := s.handleMessage(context.Background(), c, msg); err != nil {
				s.logger.Infow("error handling message", "user_id", userID, "type", msg.Type, "error", err)
				s.sendError(c, err.Error())
			}

		case broadcast := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			frame := OutboundFrame{Topic: broadcast.Topic, Payload: broadcast.Payload}
			if err := conn.WriteJSON(frame); err != nil {
				s.logger.Infow("error writing broadcast", "user_id", userID, "error", err)
				goto cleanup
			}

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Infow("error sending ping", "user_id", userID, "error", err)
				goto cleanup
			}

		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Infow("error reading message", "user_id", userID, "error", err)
			}
			goto cleanup
		}
	}

cleanup:
	s.disconnect(c)
}

// identify resolves the caller identity the transport attaches to the
// connection. A bearer token takes precedence; plain user_id/username query
// parameters serve pre-validated callers behind a trusted proxy.
func (s *WebSocketServer) identify(r *http.Request) (domain.UserID, string, error) {
	if token := r.URL.Query().Get("token"); token != "" && s.auth != nil {
		claims, err := s.auth.ValidateToken(token)
		if err != nil {
			return "", "", fmt.Errorf("invalid token")
		}
		return claims.UserID, claims.Username, nil
	}

	userID := domain.UserID(r.URL.Query().Get("user_id"))
	if userID == "" {
		return "", "", fmt.Errorf("missing user_id")
	}
	username := r.URL.Query().Get("username")
	if username == "" {
		username = string(userID)
	}
	return userID, username, nil
}

func (s *WebSocketServer) handleMessage(ctx context.Context, c *client, msg InboundMessage) error {
	if msg.Type == "" {
		return fmt.Errorf("message type is required")
	}

	ctx, span := tracing.TraceCollabMessage(ctx, msg.Type, string(msg.SessionID))
	defer span.End()

	if err := s.dispatch(ctx, c, msg); err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	return nil
}

func (s *WebSocketServer) dispatch(ctx context.Context, c *client, msg InboundMessage) error {
	switch msg.Type {
	case "join":
		return s.handleJoin(ctx, c, msg)
	case "leave":
		return s.handleLeave(ctx, c, msg)
	case "code_change":
		return s.handleCodeChange(c, msg)
	case "typing":
		return s.handleTyping(c, msg)
	case "active_users":
		return s.requireSession(msg, func(sid domain.SessionID) error {
			return s.router.HandleActiveUsers(sid)
		})
	case "metadata":
		return s.handleMetadata(c, msg)
	case "sync_state":
		return s.handleSyncState(c, msg)
	case "subscribe":
		return s.handleSubscribe(c, msg)
	case "unsubscribe":
		return s.handleUnsubscribe(c, msg)
	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

func (s *WebSocketServer) handleJoin(ctx context.Context, c *client, msg InboundMessage) error {
	if err := validation.ValidateSessionID(string(msg.SessionID)); err != nil {
		return err
	}
	tracing.AddSpanAttributes(ctx, tracing.UserIDKey.String(string(c.userID)))

	userID, username := c.userID, c.username
	if len(msg.Payload) > 0 {
		var p joinPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			return fmt.Errorf("invalid join payload: %w", err)
		}
		if p.UserID != "" {
			userID, username = p.UserID, p.Username
		}
	}

	// Subscribe before broadcasting so the joiner sees its own presence
	// message.
	for _, topic := range collab.SessionTopics(msg.SessionID) {
		s.subscribe(c, topic)
	}
	c.joined[msg.SessionID] = struct{}{}

	return s.router.HandleJoin(ctx, msg.SessionID, userID, username)
}

func (s *WebSocketServer) handleLeave(ctx context.Context, c *client, msg InboundMessage) error {
	if err := validation.ValidateSessionID(string(msg.SessionID)); err != nil {
		return err
	}

	err := s.router.HandleLeave(ctx, msg.SessionID, c.userID)

	for _, topic := range collab.SessionTopics(msg.SessionID) {
		s.unsubscribe(c, topic)
	}
	delete(c.joined, msg.SessionID)
	return err
}

func (s *WebSocketServer) handleCodeChange(c *client, msg InboundMessage) error {
	return s.requireSession(msg, func(sid domain.SessionID) error {
		var change collab.CodeChangeMessage
		if err := json.Unmarshal(msg.Payload, &change); err != nil {
			return fmt.Errorf("invalid code_change payload: %w", err)
		}
		return s.router.HandleCodeChange(sid, change)
	})
}

func (s *WebSocketServer) handleTyping(c *client, msg InboundMessage) error {
	return s.requireSession(msg, func(sid domain.SessionID) error {
		var indicator collab.TypingIndicatorMessage
		if err := json.Unmarshal(msg.Payload, &indicator); err != nil {
			return fmt.Errorf("invalid typing payload: %w", err)
		}
		if indicator.UserID == "" {
			indicator.UserID = c.userID
		}
		return s.router.HandleTyping(sid, indicator)
	})
}

func (s *WebSocketServer) handleMetadata(c *client, msg InboundMessage) error {
	return s.requireSession(msg, func(sid domain.SessionID) error {
		var update collab.MetadataUpdateMessage
		if err := json.Unmarshal(msg.Payload, &update); err != nil {
			return fmt.Errorf("invalid metadata payload: %w", err)
		}
		return s.router.HandleMetadata(sid, update)
	})
}

func (s *WebSocketServer) handleSyncState(c *client, msg InboundMessage) error {
	return s.requireSession(msg, func(sid domain.SessionID) error {
		var req collab.SyncStateRequest
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				return fmt.Errorf("invalid sync_state payload: %w", err)
			}
		}
		if req.UserID == "" {
			req.UserID = c.userID
			req.Username = c.username
		}
		return s.router.HandleSyncState(sid, req)
	})
}

func (s *WebSocketServer) handleSubscribe(c *client, msg InboundMessage) error {
	var p subscribePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Topic == "" {
		return fmt.Errorf("invalid subscribe payload")
	}
	s.subscribe(c, p.Topic)
	return nil
}

func (s *WebSocketServer) handleUnsubscribe(c *client, msg InboundMessage) error {
	var p subscribePayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil || p.Topic == "" {
		return fmt.Errorf("invalid unsubscribe payload")
	}
	s.unsubscribe(c, p.Topic)
	return nil
}

func (s *WebSocketServer) requireSession(msg InboundMessage, fn func(domain.SessionID) error) error {
	if err := validation.ValidateSessionID(string(msg.SessionID)); err != nil {
		return err
	}
	return fn(msg.SessionID)
}

func (s *WebSocketServer) subscribe(c *client, topic string) {
	if _, ok := c.subs[topic]; ok {
		return
	}
	c.subs[topic] = s.broker.Subscribe(topic, c.send)
}

func (s *WebSocketServer) unsubscribe(c *client, topic string) {
	if id, ok := c.subs[topic]; ok {
		s.broker.Unsubscribe(topic, id)
		delete(c.subs, topic)
	}
}

// disconnect removes the client, leaves every session it had joined (so
// presence converges), and drops all its subscriptions.
func (s *WebSocketServer) disconnect(c *client) {
	s.mu.Lock()
	if current, ok := s.clients[c.userID]; ok && current == c {
		delete(s.clients, c.userID)
	}
	s.mu.Unlock()

	for sessionID := range c.joined {
		if err := s.router.HandleLeave(context.Background(), sessionID, c.userID); err != nil {
			s.logger.Infow("error leaving session on disconnect",
				"user_id", c.userID, "session_id", sessionID, "error", err)
		}
	}
	for topic := range c.subs {
		s.unsubscribe(c, topic)
	}

	s.logger.Infow("user disconnected", "user_id", c.userID)
}

func (s *WebSocketServer) sendError(c *client, message string) {
	c.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	c.conn.WriteJSON(map[string]interface{}{
		"type":    "error",
		"message": message,
	})
}

// ConnectionCount reports the number of live connections, for monitoring.
func (s *WebSocketServer) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *WebSocketServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":      "healthy",
		"timestamp":   time.Now().Unix(),
		"connections": s.ConnectionCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
