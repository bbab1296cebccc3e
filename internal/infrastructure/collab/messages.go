package collab

import (
	"fmt"
	"strings"

	"codeshare/internal/core/domain"
)

// Topic naming is load-bearing: subscribers address broadcasts by these exact
// paths, one topic per session per concern.
const topicPrefix = "/topic/snippet/"

func PresenceTopic(sessionID domain.SessionID) string { return sessionTopic(sessionID, "presence") }
func CodeTopic(sessionID domain.SessionID) string     { return sessionTopic(sessionID, "code") }
func TypingTopic(sessionID domain.SessionID) string   { return sessionTopic(sessionID, "typing") }
func UsersTopic(sessionID domain.SessionID) string    { return sessionTopic(sessionID, "users") }
func MetadataTopic(sessionID domain.SessionID) string { return sessionTopic(sessionID, "metadata") }
func SyncTopic(sessionID domain.SessionID) string     { return sessionTopic(sessionID, "sync") }
func SecurityEventsTopic(sessionID domain.SessionID) string {
	return sessionTopic(sessionID, "security-events")
}

func sessionTopic(sessionID domain.SessionID, concern string) string {
	return fmt.Sprintf("%s%s/%s", topicPrefix, sessionID, concern)
}

// SessionTopics lists every topic of a session, in no particular order.
func SessionTopics(sessionID domain.SessionID) []string {
	return []string{
		PresenceTopic(sessionID),
		CodeTopic(sessionID),
		TypingTopic(sessionID),
		UsersTopic(sessionID),
		MetadataTopic(sessionID),
		SyncTopic(sessionID),
		SecurityEventsTopic(sessionID),
	}
}

// TopicConcern extracts the trailing concern segment ("presence", "code", ...)
// from a session topic, or "" if the topic is not session-scoped.
func TopicConcern(topic string) string {
	if !strings.HasPrefix(topic, topicPrefix) {
		return ""
	}
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		return topic[i+1:]
	}
	return ""
}

const (
	PresenceUserJoined = "user_joined"
	PresenceUserLeft   = "user_left"

	securityNotificationType = "SECURITY_EVENT"
)

// PresenceMessage announces a join or leave together with the refreshed
// active-user list and the session title (empty when the lookup failed).
type PresenceMessage struct {
	Type         string              `json:"type"`
	UserID       domain.UserID       `json:"userId"`
	Username     string              `json:"username"`
	ActiveUsers  []domain.ActiveUser `json:"activeUsers"`
	SnippetTitle string              `json:"snippetTitle"`
}

// CodeChangeMessage is relayed verbatim; the server keeps no copy of the
// document, so the payload's author is the authority on its content.
type CodeChangeMessage struct {
	UserID    domain.UserID `json:"userId"`
	Username  string        `json:"username"`
	Code      string        `json:"code"`
	Language  string        `json:"language"`
	Timestamp int64         `json:"timestamp"`
}

type TypingIndicatorMessage struct {
	UserID   domain.UserID `json:"userId"`
	IsTyping bool          `json:"isTyping"`
}

// TypingStatusMessage carries the registry's current view, recomputed on
// every indicator rather than echoed from the inbound payload.
type TypingStatusMessage struct {
	TypingUsers []domain.TypingUser `json:"typingUsers"`
}

type ActiveUsersMessage struct {
	Users []domain.ActiveUser `json:"users"`
	Count int                 `json:"count"`
}

// MetadataUpdateMessage is relayed verbatim, same last-write-wins semantics
// as code changes.
type MetadataUpdateMessage struct {
	UserID      domain.UserID `json:"userId"`
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	Language    string        `json:"language,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
	Timestamp   int64         `json:"timestamp"`
}

// SyncStateRequest asks the participants already in the session to
// re-broadcast their live state; the server buffers no history itself.
type SyncStateRequest struct {
	UserID    domain.UserID `json:"userId"`
	Username  string        `json:"username"`
	Timestamp int64         `json:"timestamp"`
}

// SecurityNotification is the live owner-topic broadcast for a blocked
// action. SnippetID stays a string: non-numeric ids (snippets still being
// created) skip persistence but still broadcast.
type SecurityNotification struct {
	Type      string        `json:"type"`
	EventType string        `json:"eventType"`
	UserID    domain.UserID `json:"userId,omitempty"`
	Username  string        `json:"username"`
	SnippetID string        `json:"snippetId"`
	Timestamp int64         `json:"timestamp"`
	Message   string        `json:"message"`
}

// NewSecurityNotification derives the human-readable message from the event
// type, e.g. "alice attempted copy attempt".
func NewSecurityNotification(snippetID, username string, eventType domain.SecurityEventType, now int64) SecurityNotification {
	readable := strings.ToLower(strings.ReplaceAll(string(eventType), "_", " "))
	return SecurityNotification{
		Type:      securityNotificationType,
		EventType: string(eventType),
		Username:  username,
		SnippetID: snippetID,
		Timestamp: now,
		Message:   fmt.Sprintf("%s attempted %s", username, readable),
	}
}
