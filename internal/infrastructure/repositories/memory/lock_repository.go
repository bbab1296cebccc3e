package memory

import (
	"context"
	"sync"

	"codeshare/internal/core/domain"
	"codeshare/internal/core/ports"
)

type lockKey struct {
	snippetID int64
	sessionID int64
}

type MemoryLockRepository struct {
	locks  map[lockKey]*domain.EditorLock
	nextID int64
	mu     sync.RWMutex
}

func NewMemoryLockRepository() ports.LockRepository {
	return &MemoryLockRepository{
		locks: make(map[lockKey]*domain.EditorLock),
	}
}

func (r *MemoryLockRepository) FindBySnippetAndSession(ctx context.Context, snippetID, sessionID int64) (*domain.EditorLock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lock, exists := r.locks[lockKey{snippetID, sessionID}]
	if !exists {
		return nil, domain.ErrLockNotFound
	}
	cp := *lock
	return &cp, nil
}

func (r *MemoryLockRepository) FindBySnippet(ctx context.Context, snippetID int64) (*domain.EditorLock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for key, lock := range r.locks {
		if key.snippetID == snippetID {
			cp := *lock
			return &cp, nil
		}
	}
	return nil, domain.ErrLockNotFound
}

func (r *MemoryLockRepository) Save(ctx context.Context, lock *domain.EditorLock) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lock.ID == 0 {
		r.nextID++
		lock.ID = r.nextID
	}
	cp := *lock
	r.locks[lockKey{lock.SnippetID, lock.SessionID}] = &cp
	return nil
}
