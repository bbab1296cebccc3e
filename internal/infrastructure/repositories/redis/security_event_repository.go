package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"codeshare/internal/core/domain"
	"codeshare/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const eventIDCounter = "codeshare:security_event:next_id"

type RedisSecurityEventRepository struct {
	client *redis.Client
}

func NewRedisSecurityEventRepository(client *redis.Client) ports.SecurityEventRepository {
	return &RedisSecurityEventRepository{client: client}
}

func (r *RedisSecurityEventRepository) eventKey(id int64) string {
	return fmt.Sprintf("codeshare:security_event:%d", id)
}

func (r *RedisSecurityEventRepository) snippetIndexKey(snippetID int64) string {
	return fmt.Sprintf("codeshare:snippet:%d:security_events", snippetID)
}

func (r *RedisSecurityEventRepository) Save(ctx context.Context, event *domain.SecurityEvent) error {
	if event.ID == 0 {
		id, err := r.client.Incr(ctx, eventIDCounter).Result()
		if err != nil {
			return fmt.Errorf("failed to allocate event id: %w", err)
		}
		event.ID = id
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal security event: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.eventKey(event.ID), data, 0)
	pipe.SAdd(ctx, r.snippetIndexKey(event.SnippetID), event.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save security event in Redis: %w", err)
	}
	return nil
}

func (r *RedisSecurityEventRepository) FindByID(ctx context.Context, id int64) (*domain.SecurityEvent, error) {
	data, err := r.client.Get(ctx, r.eventKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrSecurityEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get security event from Redis: %w", err)
	}

	var event domain.SecurityEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal security event: %w", err)
	}
	return &event, nil
}

func (r *RedisSecurityEventRepository) FindBySnippet(ctx context.Context, snippetID int64) ([]*domain.SecurityEvent, error) {
	return r.find(ctx, snippetID, false)
}

func (r *RedisSecurityEventRepository) FindUnnotifiedBySnippet(ctx context.Context, snippetID int64) ([]*domain.SecurityEvent, error) {
	return r.find(ctx, snippetID, true)
}

func (r *RedisSecurityEventRepository) find(ctx context.Context, snippetID int64, unnotifiedOnly bool) ([]*domain.SecurityEvent, error) {
	ids, err := r.client.SMembers(ctx, r.snippetIndexKey(snippetID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get snippet event index from Redis: %w", err)
	}

	var events []*domain.SecurityEvent
	for _, idStr := range ids {
		var id int64
		if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
			continue
		}
		event, err := r.FindByID(ctx, id)
		if err != nil {
			// Skip index entries whose event is gone.
			continue
		}
		if unnotifiedOnly && event.OwnerNotified {
			continue
		}
		events = append(events, event)
	}

	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}
