package repositories

import (
	"context"

	"codeshare/internal/core/ports"
	"codeshare/internal/infrastructure/repositories/memory"
	redisrepo "codeshare/internal/infrastructure/repositories/redis"
	"codeshare/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates repositories with fallback support
type RepositoryFactory struct {
	useRedis    bool
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory creates a new repository factory
func NewRepositoryFactory(cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		useRedis: cfg.Redis.Enabled,
		logger:   logger,
	}

	// Try to connect to Redis if enabled
	if cfg.Redis.Enabled {
		client, err := redisrepo.NewRedisClient(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.Redis.PoolSize,
			logger,
		)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory repositories",
				"error", err,
			)
			factory.useRedis = false
		} else {
			factory.redisClient = client
			logger.Info("using Redis repositories")
		}
	}

	if !factory.useRedis {
		logger.Info("using memory repositories")
	}

	return factory, nil
}

// RedisClient exposes the shared client for components that talk to Redis
// directly, such as the cross-instance event bus. Nil when Redis is off or
// the connection fell back to memory.
func (f *RepositoryFactory) RedisClient() *redis.Client {
	if f.useRedis {
		return f.redisClient
	}
	return nil
}

// CreateLockRepository creates an editor lock repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateLockRepository() ports.LockRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisLockRepository(f.redisClient)
	}
	return memory.NewMemoryLockRepository()
}

// CreateSecurityEventRepository creates a security event repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateSecurityEventRepository() ports.SecurityEventRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisSecurityEventRepository(f.redisClient)
	}
	return memory.NewMemorySecurityEventRepository()
}

// CreateSnippetRepository creates a snippet metadata repository (Redis or memory with fallback)
func (f *RepositoryFactory) CreateSnippetRepository() ports.SnippetRepository {
	if f.useRedis && f.redisClient != nil {
		return redisrepo.NewRedisSnippetRepository(f.redisClient)
	}
	return memory.NewMemorySnippetRepository()
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.useRedis && f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
