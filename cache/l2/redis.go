package l2

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-redis/redis/v8"

	"github.com/carelink/keyguard/cache"
	"github.com/carelink/keyguard/keys"
)

// Ensure RedisCache implements cache.Cache
var _ cache.Cache = (*RedisCache)(nil)

// RedisCache is the shared verdict cache backed by Redis, for deployments
// where several workers should agree on verdicts without each re-validating.
type RedisCache struct {
	client cache.RedisClient
	cfg    *cache.RedisConfig
	logger cache.Logger
}

// Option is a functional option for configuring RedisCache
type Option func(*RedisCache)

// WithLogger sets the logger for RedisCache
func WithLogger(logger cache.Logger) Option {
	return func(rc *RedisCache) {
		rc.logger = logger
	}
}

// New creates an L2 verdict cache with the provided client
func New(cfg *cache.RedisConfig, client cache.RedisClient, opts ...Option) cache.Cache {
	cfg.ApplyDefaults()

	rc := &RedisCache{
		client: client,
		cfg:    cfg,
		logger: cache.NoopLogger{},
	}

	for _, opt := range opts {
		opt(rc)
	}

	return rc
}

// NewClient creates a go-redis client from the config
func NewClient(cfg *cache.RedisConfig) cache.RedisClient {
	cfg.ApplyDefaults()
	return redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
	})
}

// Get retrieves a cached verdict by credential fingerprint
func (rc *RedisCache) Get(fingerprint string) (*keys.Verdict, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), rc.cfg.ReadTimeout)
	defer cancel()

	data, err := rc.client.Get(ctx, rc.cfg.KeyPrefix+fingerprint).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false
		}
		rc.logger.Warn("L2 verdict get failed", "fingerprint", fingerprint, "error", err)
		return nil, false
	}

	var verdict keys.Verdict
	if err := json.Unmarshal([]byte(data), &verdict); err != nil {
		rc.logger.Error("failed to decode L2 verdict entry", "fingerprint", fingerprint, "error", err)
		rc.client.Del(context.Background(), rc.cfg.KeyPrefix+fingerprint)
		return nil, false
	}

	return &verdict, true
}

// Set stores a verdict by credential fingerprint with the configured TTL
func (rc *RedisCache) Set(fingerprint string, verdict keys.Verdict) {
	ctx, cancel := context.WithTimeout(context.Background(), rc.cfg.SendTimeout)
	defer cancel()

	data, err := json.Marshal(verdict)
	if err != nil {
		rc.logger.Error("failed to encode L2 verdict entry", "fingerprint", fingerprint, "error", err)
		return
	}

	if err := rc.client.Set(ctx, rc.cfg.KeyPrefix+fingerprint, data, rc.cfg.TTL).Err(); err != nil {
		rc.logger.Warn("failed to set L2 verdict entry", "fingerprint", fingerprint, "error", err)
	}
}

// Delete removes a verdict from the cache
func (rc *RedisCache) Delete(fingerprint string) {
	ctx, cancel := context.WithTimeout(context.Background(), rc.cfg.SendTimeout)
	defer cancel()

	if err := rc.client.Del(ctx, rc.cfg.KeyPrefix+fingerprint).Err(); err != nil {
		rc.logger.Warn("failed to delete L2 verdict entry", "fingerprint", fingerprint, "error", err)
	}
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}
