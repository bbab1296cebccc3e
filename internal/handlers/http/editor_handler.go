package http

import (
	"net/http"
	"time"

	"codeshare/internal/core/domain"
	"codeshare/internal/core/ports"
	"codeshare/internal/infrastructure/collab"
	"codeshare/pkg/errors"
	"codeshare/pkg/tracing"
	"codeshare/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EditorMetrics is the subset of the Prometheus collector the editor
// endpoints report to. Nil is a valid value.
type EditorMetrics interface {
	RecordLock()
	RecordUnlock()
	RecordSecurityEvent(eventType string)
}

type EditorHandler struct {
	lockService     ports.LockService
	securityService ports.SecurityEventService
	publisher       ports.Publisher
	metrics         EditorMetrics
	logger          *zap.SugaredLogger
}

func NewEditorHandler(
	lockService ports.LockService,
	securityService ports.SecurityEventService,
	publisher ports.Publisher,
	logger *zap.SugaredLogger,
) *EditorHandler {
	return &EditorHandler{
		lockService:     lockService,
		securityService: securityService,
		publisher:       publisher,
		logger:          logger,
	}
}

// SetMetrics attaches the Prometheus collector. Optional; without it the
// endpoints work, they just report nothing.
func (h *EditorHandler) SetMetrics(m EditorMetrics) {
	h.metrics = m
}

func (h *EditorHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/editor")
	{
		api.POST("/lock", h.Lock)
		api.POST("/unlock", h.Unlock)
		api.GET("/lock-status", h.LockStatus)
		api.POST("/record-event", h.RecordEvent)
		api.GET("/unnotified-events", h.UnnotifiedEvents)
		api.POST("/notify-event", h.NotifyEvent)
		api.GET("/events", h.Events)
	}
}

// Ids arrive as strings: the frontend sends whatever it has, which for
// snippets still being created is a placeholder rather than a number.
type LockRequest struct {
	SnippetID string `json:"snippetId" binding:"required"`
	SessionID string `json:"sessionId" binding:"required"`
	UserID    string `json:"userId" binding:"required"`
	Reason    string `json:"reason"`
}

type RecordEventRequest struct {
	SnippetID string `json:"snippetId" binding:"required"`
	SessionID string `json:"sessionId" binding:"required"`
	UserID    string `json:"userId"`
	Username  string `json:"userUsername" binding:"required"`
	EventType string `json:"eventType" binding:"required"`
}

type NotifyEventRequest struct {
	EventID int64 `json:"eventId" binding:"required"`
}

func (h *EditorHandler) Lock(c *gin.Context) {
	var req LockRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	snippetID, sessionID, userID, err := parseLockIDs(req)
	if err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	isOwner, err := h.lockService.IsOwner(c.Request.Context(), snippetID, userID)
	if err != nil {
		c.Error(errors.NewInternalError("failed to check lock ownership"))
		return
	}
	if !isOwner {
		c.Error(errors.NewForbiddenError("only the snippet owner can lock the editor"))
		return
	}

	lock, err := h.lockService.Lock(c.Request.Context(), snippetID, sessionID, req.Reason)
	if err != nil {
		c.Error(errors.NewInternalError("failed to lock editor"))
		return
	}

	if h.metrics != nil {
		h.metrics.RecordLock()
	}
	c.JSON(http.StatusOK, lock)
}

func (h *EditorHandler) Unlock(c *gin.Context) {
	var req LockRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	snippetID, sessionID, userID, err := parseLockIDs(req)
	if err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	isOwner, err := h.lockService.IsOwner(c.Request.Context(), snippetID, userID)
	if err != nil {
		c.Error(errors.NewInternalError("failed to check lock ownership"))
		return
	}
	if !isOwner {
		c.Error(errors.NewForbiddenError("only the snippet owner can unlock the editor"))
		return
	}

	lock, err := h.lockService.Unlock(c.Request.Context(), snippetID, sessionID)
	if err != nil {
		c.Error(errors.NewInternalError("failed to unlock editor"))
		return
	}

	if h.metrics != nil {
		h.metrics.RecordUnlock()
	}
	c.JSON(http.StatusOK, lock)
}

// LockStatus degrades instead of rejecting: malformed or missing ids mean
// the caller is editing an unsaved snippet, which can never be locked.
func (h *EditorHandler) LockStatus(c *gin.Context) {
	snippetID, err := validation.ParseID(c.Query("snippetId"))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"isLocked": false})
		return
	}
	sessionID, err := validation.ParseID(c.Query("sessionId"))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"isLocked": false})
		return
	}

	lock, err := h.lockService.Status(c.Request.Context(), snippetID, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrLockNotFound) {
			h.logger.Warnw("lock status lookup failed",
				"snippet_id", snippetID,
				"session_id", sessionID,
				"error", err,
			)
		}
		c.JSON(http.StatusOK, gin.H{"isLocked": false})
		return
	}
	if !lock.IsLocked {
		c.JSON(http.StatusOK, gin.H{"isLocked": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"isLocked": true,
		"lockedAt": lock.LockedAt,
		"reason":   lock.LockReason,
	})
}

func (h *EditorHandler) RecordEvent(c *gin.Context) {
	var req RecordEventRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	eventType, err := domain.ParseSecurityEventType(req.EventType)
	if err != nil {
		c.Error(errors.NewInvalidInputError("unknown event type: " + req.EventType))
		return
	}

	// The owner-topic broadcast must go out whether or not the event can be
	// persisted, so it is published before the store outcome is decided.
	notification := collab.NewSecurityNotification(req.SnippetID, req.Username, eventType, time.Now().UnixMilli())
	notification.UserID = domain.UserID(req.UserID)
	topic := collab.SecurityEventsTopic(domain.SessionID(req.SessionID))
	tracing.AddSpanAttributes(c.Request.Context(),
		tracing.SnippetIDKey.String(req.SnippetID),
		tracing.TopicKey.String(topic),
	)
	if err := h.publisher.Publish(topic, notification); err != nil {
		h.logger.Warnw("security notification broadcast failed",
			"topic", topic,
			"error", err,
		)
	}

	if h.metrics != nil {
		h.metrics.RecordSecurityEvent(string(eventType))
	}

	snippetID, snippetErr := validation.ParseID(req.SnippetID)
	sessionID, sessionErr := validation.ParseID(req.SessionID)
	userID, userErr := validation.ParseID(req.UserID)
	if snippetErr != nil || sessionErr != nil || userErr != nil {
		c.JSON(http.StatusOK, gin.H{"success": true, "notRecordedToDb": true})
		return
	}

	event, err := h.securityService.Record(c.Request.Context(), snippetID, sessionID, userID, req.Username, string(eventType))
	if err != nil {
		h.logger.Errorw("failed to persist security event",
			"snippet_id", snippetID,
			"event_type", eventType,
			"error", err,
		)
		c.JSON(http.StatusOK, gin.H{"success": true, "notRecordedToDb": true})
		return
	}

	c.JSON(http.StatusOK, event)
}

func (h *EditorHandler) UnnotifiedEvents(c *gin.Context) {
	snippetID, err := validation.ParseID(c.Query("snippetId"))
	if err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	events, err := h.securityService.Unnotified(c.Request.Context(), snippetID)
	if err != nil {
		c.Error(errors.NewInternalError("failed to load security events"))
		return
	}

	c.JSON(http.StatusOK, events)
}

func (h *EditorHandler) NotifyEvent(c *gin.Context) {
	var req NotifyEventRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(errors.NewInvalidInputError("invalid request format"))
		return
	}

	event, err := h.securityService.NotifyOwner(c.Request.Context(), req.EventID)
	if err != nil {
		if errors.Is(err, domain.ErrSecurityEventNotFound) {
			c.Error(errors.NewNotFoundError("security event"))
			return
		}
		c.Error(errors.NewInternalError("failed to mark event notified"))
		return
	}

	c.JSON(http.StatusOK, event)
}

func (h *EditorHandler) Events(c *gin.Context) {
	snippetID, err := validation.ParseID(c.Query("snippetId"))
	if err != nil {
		c.Error(errors.NewInvalidInputError(err.Error()))
		return
	}

	events, err := h.securityService.Events(c.Request.Context(), snippetID)
	if err != nil {
		c.Error(errors.NewInternalError("failed to load security events"))
		return
	}

	c.JSON(http.StatusOK, events)
}

func parseLockIDs(req LockRequest) (snippetID, sessionID, userID int64, err error) {
	if snippetID, err = validation.ParseID(req.SnippetID); err != nil {
		return
	}
	if sessionID, err = validation.ParseID(req.SessionID); err != nil {
		return
	}
	userID, err = validation.ParseID(req.UserID)
	return
}
