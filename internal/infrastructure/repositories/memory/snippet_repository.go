package memory

import (
	"context"
	"sync"

	"codeshare/internal/core/domain"
	"codeshare/internal/core/ports"
)

// MemorySnippetRepository serves snippet metadata lookups from a local map.
// Production deployments read the external snippet service's store through
// the Redis repository; this one backs tests and single-node setups.
type MemorySnippetRepository struct {
	snippets map[string]*domain.Snippet
	mu       sync.RWMutex
}

func NewMemorySnippetRepository() *MemorySnippetRepository {
	return &MemorySnippetRepository{
		snippets: make(map[string]*domain.Snippet),
	}
}

var _ ports.SnippetRepository = (*MemorySnippetRepository)(nil)

func (r *MemorySnippetRepository) GetByID(ctx context.Context, id string) (*domain.Snippet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snippet, exists := r.snippets[id]
	if !exists {
		return nil, domain.ErrSnippetNotFound
	}
	cp := *snippet
	return &cp, nil
}

// Put seeds or replaces a snippet entry.
func (r *MemorySnippetRepository) Put(snippet *domain.Snippet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *snippet
	r.snippets[snippet.ID] = &cp
}
