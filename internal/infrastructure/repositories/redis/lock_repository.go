package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"codeshare/internal/core/domain"
	"codeshare/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const lockIDCounter = "codeshare:editor_lock:next_id"

type RedisLockRepository struct {
	client *redis.Client
}

func NewRedisLockRepository(client *redis.Client) ports.LockRepository {
	return &RedisLockRepository{client: client}
}

func (r *RedisLockRepository) lockKey(snippetID, sessionID int64) string {
	return fmt.Sprintf("codeshare:editor_lock:%d:%d", snippetID, sessionID)
}

func (r *RedisLockRepository) snippetIndexKey(snippetID int64) string {
	return fmt.Sprintf("codeshare:snippet:%d:lock", snippetID)
}

func (r *RedisLockRepository) FindBySnippetAndSession(ctx context.Context, snippetID, sessionID int64) (*domain.EditorLock, error) {
	return r.get(ctx, r.lockKey(snippetID, sessionID))
}

// FindBySnippet resolves the snippet's lock row through the per-snippet
// index key written on Save.
func (r *RedisLockRepository) FindBySnippet(ctx context.Context, snippetID int64) (*domain.EditorLock, error) {
	key, err := r.client.Get(ctx, r.snippetIndexKey(snippetID)).Result()
	if err == redis.Nil {
		return nil, domain.ErrLockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lock index from Redis: %w", err)
	}
	return r.get(ctx, key)
}

func (r *RedisLockRepository) Save(ctx context.Context, lock *domain.EditorLock) error {
	if lock.ID == 0 {
		id, err := r.client.Incr(ctx, lockIDCounter).Result()
		if err != nil {
			return fmt.Errorf("failed to allocate lock id: %w", err)
		}
		lock.ID = id
	}

	data, err := json.Marshal(lock)
	if err != nil {
		return fmt.Errorf("failed to marshal lock: %w", err)
	}

	key := r.lockKey(lock.SnippetID, lock.SessionID)
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.Set(ctx, r.snippetIndexKey(lock.SnippetID), key, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save lock in Redis: %w", err)
	}
	return nil
}

func (r *RedisLockRepository) get(ctx context.Context, key string) (*domain.EditorLock, error) {
	data, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, domain.ErrLockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lock from Redis: %w", err)
	}

	var lock domain.EditorLock
	if err := json.Unmarshal([]byte(data), &lock); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lock: %w", err)
	}
	return &lock, nil
}
