package ports

import (
	"context"

	"codeshare/internal/core/domain"
)

// PresenceRegistry tracks the connected participants and typing status of
// every active session. Operations perform no I/O and are safe under
// arbitrary concurrent invocation; independent sessions do not contend.
type PresenceRegistry interface {
	Join(sessionID domain.SessionID, userID domain.UserID, username string)
	SetOwner(sessionID domain.SessionID, ownerID domain.UserID)
	Owner(sessionID domain.SessionID) (domain.UserID, bool)
	Leave(sessionID domain.SessionID, userID domain.UserID)
	ActiveUsers(sessionID domain.SessionID) []domain.ActiveUser
	SetTyping(sessionID domain.SessionID, userID domain.UserID, isTyping bool)
	TypingUsers(sessionID domain.SessionID) []domain.UserID
	TypingUsersWithNames(sessionID domain.SessionID) []domain.TypingUser
	IsPresent(sessionID domain.SessionID, userID domain.UserID) bool
	CountActive(sessionID domain.SessionID) int
	Stats() (sessions, participants int)
}

// LockService owns the UNLOCKED -> LOCKED -> UNLOCKED state machine. Callers
// at the message boundary must check IsOwner before invoking Lock/Unlock;
// the service trusts its caller on mutation.
type LockService interface {
	GetOrCreate(ctx context.Context, snippetID, sessionID, ownerID int64) (*domain.EditorLock, error)
	Lock(ctx context.Context, snippetID, sessionID int64, reason string) (*domain.EditorLock, error)
	Unlock(ctx context.Context, snippetID, sessionID int64) (*domain.EditorLock, error)
	IsLocked(ctx context.Context, snippetID, sessionID int64) (bool, error)
	Status(ctx context.Context, snippetID, sessionID int64) (*domain.EditorLock, error)
	IsOwner(ctx context.Context, snippetID, userID int64) (bool, error)
}

type SecurityEventService interface {
	Record(ctx context.Context, snippetID, sessionID, userID int64, username, eventType string) (*domain.SecurityEvent, error)
	NotifyOwner(ctx context.Context, eventID int64) (*domain.SecurityEvent, error)
	Unnotified(ctx context.Context, snippetID int64) ([]*domain.SecurityEvent, error)
	Events(ctx context.Context, snippetID int64) ([]*domain.SecurityEvent, error)
}

// Publisher is the single broadcast capability handed to the message router.
// Every subscriber of a topic receives every payload published on it; the
// router knows nothing about the transport behind it.
type Publisher interface {
	Publish(topic string, payload interface{}) error
}
