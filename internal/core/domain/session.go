package domain

import "time"

// SessionID identifies one shared editing session. It is supplied by the
// caller and usually matches the snippet id the session was opened for,
// but snippets still being created use transient ids like "new-snippet-...".
type SessionID string

type UserID string

// Participant is a user currently joined to a session. Ownership is not
// stored here; it is derived against the session's owner id at read time.
type Participant struct {
	UserID   UserID    `json:"userId"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

// ActiveUser is a participant annotated with presence-derived flags.
type ActiveUser struct {
	UserID   UserID    `json:"userId"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
	IsTyping bool      `json:"isTyping"`
	IsOwner  bool      `json:"owner"`
}

type TypingUser struct {
	UserID   UserID `json:"userId"`
	Username string `json:"username"`
}
