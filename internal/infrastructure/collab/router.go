package collab

import (
	"context"
	"time"

	"codeshare/internal/core/domain"
	"codeshare/internal/core/ports"

	"go.uber.org/zap"
)

// Router is the fan-out switch between inbound session events and outbound
// topic broadcasts. It owns the presence registry's mutations and consults
// the snippet collaborator best-effort; it carries no document state of its
// own and never blocks waiting on subscribers.
type Router struct {
	presence  ports.PresenceRegistry
	snippets  ports.SnippetRepository
	publisher ports.Publisher
	logger    *zap.SugaredLogger
}

func NewRouter(
	presence ports.PresenceRegistry,
	snippets ports.SnippetRepository,
	publisher ports.Publisher,
	logger *zap.SugaredLogger,
) *Router {
	return &Router{
		presence:  presence,
		snippets:  snippets,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleJoin registers the participant, resolves the authoritative owner and
// title from the snippet collaborator when it answers, and broadcasts the
// refreshed presence. Lookup failures degrade to defaults and never stop the
// broadcast.
func (r *Router) HandleJoin(ctx context.Context, sessionID domain.SessionID, userID domain.UserID, username string) error {
	r.presence.Join(sessionID, userID, username)

	title := ""
	snippet, err := r.snippets.GetByID(ctx, string(sessionID))
	switch {
	case err != nil:
		r.logger.Warnw("snippet lookup failed on join, proceeding without owner/title",
			"session_id", sessionID, "error", err)
	case snippet != nil:
		if snippet.AuthorID != "" {
			r.presence.SetOwner(sessionID, domain.UserID(snippet.AuthorID))
		}
		title = snippet.Title
	}

	return r.publish(PresenceTopic(sessionID), PresenceMessage{
		Type:         PresenceUserJoined,
		UserID:       userID,
		Username:     username,
		ActiveUsers:  r.presence.ActiveUsers(sessionID),
		SnippetTitle: title,
	})
}

// HandleLeave removes the participant and broadcasts the refreshed presence
// to whoever remains subscribed.
func (r *Router) HandleLeave(ctx context.Context, sessionID domain.SessionID, userID domain.UserID) error {
	username := ""
	for _, u := range r.presence.ActiveUsers(sessionID) {
		if u.UserID == userID {
			username = u.Username
			break
		}
	}

	r.presence.Leave(sessionID, userID)

	title := ""
	if snippet, err := r.snippets.GetByID(ctx, string(sessionID)); err != nil {
		r.logger.Warnw("snippet lookup failed on leave, proceeding without title",
			"session_id", sessionID, "error", err)
	} else if snippet != nil {
		title = snippet.Title
	}

	return r.publish(PresenceTopic(sessionID), PresenceMessage{
		Type:         PresenceUserLeft,
		UserID:       userID,
		Username:     username,
		ActiveUsers:  r.presence.ActiveUsers(sessionID),
		SnippetTitle: title,
	})
}

// HandleCodeChange relays the payload verbatim. The registry is untouched:
// document content is last-write-wins between the participants themselves.
func (r *Router) HandleCodeChange(sessionID domain.SessionID, change CodeChangeMessage) error {
	return r.publish(CodeTopic(sessionID), change)
}

// HandleTyping updates the typing set and broadcasts the registry's current
// view of who is typing.
func (r *Router) HandleTyping(sessionID domain.SessionID, indicator TypingIndicatorMessage) error {
	r.presence.SetTyping(sessionID, indicator.UserID, indicator.IsTyping)
	return r.publish(TypingTopic(sessionID), TypingStatusMessage{
		TypingUsers: r.presence.TypingUsersWithNames(sessionID),
	})
}

// HandleActiveUsers answers an on-demand active-user query, the pull-based
// alternative to the join/leave push.
func (r *Router) HandleActiveUsers(sessionID domain.SessionID) error {
	users := r.presence.ActiveUsers(sessionID)
	return r.publish(UsersTopic(sessionID), ActiveUsersMessage{
		Users: users,
		Count: len(users),
	})
}

// HandleMetadata relays the payload verbatim, like code changes.
func (r *Router) HandleMetadata(sessionID domain.SessionID, update MetadataUpdateMessage) error {
	return r.publish(MetadataTopic(sessionID), update)
}

// HandleSyncState tells the session's existing participants to re-broadcast
// their live state to the requester.
func (r *Router) HandleSyncState(sessionID domain.SessionID, req SyncStateRequest) error {
	if req.Timestamp == 0 {
		req.Timestamp = time.Now().UnixMilli()
	}
	return r.publish(SyncTopic(sessionID), req)
}

func (r *Router) publish(topic string, payload interface{}) error {
	if err := r.publisher.Publish(topic, payload); err != nil {
		// No silent retry against stale state: the next event of the same
		// kind re-broadcasts fresh state.
		r.logger.Errorw("broadcast failed", "topic", topic, "error", err)
		return err
	}
	return nil
}
