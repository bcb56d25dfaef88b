package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/carelink/keyguard/keys"
)

//go:generate mockgen -package=mock -source=cache.go -destination=mock/cache.go

// Cache stores validation verdicts keyed by credential fingerprint so the
// middleware can skip re-validating a credential it has already seen.
// Verdicts are immutable values, so staleness only matters when the rule
// tables change; implementations bound entry lifetime with a TTL.
type Cache interface {
	Get(fingerprint string) (*keys.Verdict, bool)
	Set(fingerprint string, verdict keys.Verdict)
	Delete(fingerprint string)
}

// RedisClient defines the Redis operations the L2 cache needs
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// Logger defines the interface for logging operations
// This allows users to plug in their own logger (slog, zap, etc.)
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// NoopLogger is a no-operation logger that discards all log messages
type NoopLogger struct{}

func (NoopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (NoopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (NoopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (NoopLogger) Error(msg string, keysAndValues ...interface{}) {}

// Ensure NoOpCache implements Cache
var _ Cache = (*NoOpCache)(nil)

// NoOpCache is a no-operation cache implementation for disabled caches
type NoOpCache struct{}

// NewNoOpCache creates a new no-operation cache instance
func NewNoOpCache() Cache {
	return &NoOpCache{}
}

func (n *NoOpCache) Get(fingerprint string) (*keys.Verdict, bool) {
	return nil, false
}

func (n *NoOpCache) Set(fingerprint string, verdict keys.Verdict) {
}

func (n *NoOpCache) Delete(fingerprint string) {
}
