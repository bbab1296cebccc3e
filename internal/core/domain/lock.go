package domain

import "time"

// EditorLock is the durable per-(snippet, session) lock row. Rows are created
// lazily on the first lock/unlock call and are never deleted.
type EditorLock struct {
	ID         int64      `json:"id"`
	SnippetID  int64      `json:"snippetId"`
	SessionID  int64      `json:"sessionId"`
	OwnerID    int64      `json:"ownerId"`
	IsLocked   bool       `json:"isLocked"`
	LockReason string     `json:"lockReason,omitempty"`
	LockedAt   *time.Time `json:"lockedAt,omitempty"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}
