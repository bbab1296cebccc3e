package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"codeshare/internal/core/domain"
	"codeshare/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

// RedisSnippetRepository reads the snippet metadata the external snippet
// service maintains at codeshare:snippet:{id}. Reads go to the store every
// time; nothing is cached locally.
type RedisSnippetRepository struct {
	client *redis.Client
}

func NewRedisSnippetRepository(client *redis.Client) ports.SnippetRepository {
	return &RedisSnippetRepository{client: client}
}

func (r *RedisSnippetRepository) snippetKey(id string) string {
	return fmt.Sprintf("codeshare:snippet:%s", id)
}

func (r *RedisSnippetRepository) GetByID(ctx context.Context, id string) (*domain.Snippet, error) {
	data, err := r.client.Get(ctx, r.snippetKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrSnippetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snippet from Redis: %w", err)
	}

	var snippet domain.Snippet
	if err := json.Unmarshal([]byte(data), &snippet); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snippet: %w", err)
	}
	return &snippet, nil
}
