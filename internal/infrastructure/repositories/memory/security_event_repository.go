package memory

import (
	"context"
	"sort"
	"sync"

	"codeshare/internal/core/domain"
	"codeshare/internal/core/ports"
)

type MemorySecurityEventRepository struct {
	events map[int64]*domain.SecurityEvent
	nextID int64
	mu     sync.RWMutex
}

func NewMemorySecurityEventRepository() ports.SecurityEventRepository {
	return &MemorySecurityEventRepository{
		events: make(map[int64]*domain.SecurityEvent),
	}
}

func (r *MemorySecurityEventRepository) Save(ctx context.Context, event *domain.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.ID == 0 {
		r.nextID++
		event.ID = r.nextID
	}
	cp := *event
	r.events[event.ID] = &cp
	return nil
}

func (r *MemorySecurityEventRepository) FindByID(ctx context.Context, id int64) (*domain.SecurityEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	event, exists := r.events[id]
	if !exists {
		return nil, domain.ErrSecurityEventNotFound
	}
	cp := *event
	return &cp, nil
}

func (r *MemorySecurityEventRepository) FindBySnippet(ctx context.Context, snippetID int64) ([]*domain.SecurityEvent, error) {
	return r.find(snippetID, false)
}

func (r *MemorySecurityEventRepository) FindUnnotifiedBySnippet(ctx context.Context, snippetID int64) ([]*domain.SecurityEvent, error) {
	return r.find(snippetID, true)
}

func (r *MemorySecurityEventRepository) find(snippetID int64, unnotifiedOnly bool) ([]*domain.SecurityEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var events []*domain.SecurityEvent
	for _, event := range r.events {
		if event.SnippetID != snippetID {
			continue
		}
		if unnotifiedOnly && event.OwnerNotified {
			continue
		}
		cp := *event
		events = append(events, &cp)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}
