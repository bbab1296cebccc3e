package ports

import (
	"context"

	"codeshare/internal/core/domain"
)

type LockRepository interface {
	FindBySnippetAndSession(ctx context.Context, snippetID, sessionID int64) (*domain.EditorLock, error)
	FindBySnippet(ctx context.Context, snippetID int64) (*domain.EditorLock, error)
	Save(ctx context.Context, lock *domain.EditorLock) error
}

type SecurityEventRepository interface {
	Save(ctx context.Context, event *domain.SecurityEvent) error
	FindByID(ctx context.Context, id int64) (*domain.SecurityEvent, error)
	FindBySnippet(ctx context.Context, snippetID int64) ([]*domain.SecurityEvent, error)
	FindUnnotifiedBySnippet(ctx context.Context, snippetID int64) ([]*domain.SecurityEvent, error)
}

// SnippetRepository is the read-only collaborator used for best-effort
// owner/title resolution on join. Reads are never cached.
type SnippetRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Snippet, error)
}
