package l1

import (
	"context"
	"encoding/json"

	"github.com/allegro/bigcache/v3"

	"github.com/carelink/keyguard/cache"
	"github.com/carelink/keyguard/keys"
)

// Ensure VerdictCache implements cache.Cache
var _ cache.Cache = (*VerdictCache)(nil)

// VerdictCache is the in-process verdict cache backed by BigCache. Entries
// age out via the cache life window, which bounds how long a verdict can
// outlive a rule-table change.
type VerdictCache struct {
	cache  *bigcache.BigCache
	logger cache.Logger
}

// Option is a functional option for configuring VerdictCache
type Option func(*VerdictCache)

// WithLogger sets the logger for VerdictCache
func WithLogger(logger cache.Logger) Option {
	return func(vc *VerdictCache) {
		vc.logger = logger
	}
}

// New creates an L1 verdict cache
func New(cfg *cache.BigCacheConfig, opts ...Option) (cache.Cache, error) {
	cfg.ApplyDefaults()

	config := bigcache.DefaultConfig(cfg.TTL)
	config.HardMaxCacheSize = cfg.SizeMB
	config.MaxEntrySize = cfg.MaxEntrySize
	config.Shards = cfg.Shards
	config.Verbose = false

	c, err := bigcache.New(context.Background(), config)
	if err != nil {
		return nil, err
	}

	vc := &VerdictCache{
		cache:  c,
		logger: cache.NoopLogger{},
	}

	for _, opt := range opts {
		opt(vc)
	}

	return vc, nil
}

// Get retrieves a cached verdict by credential fingerprint
func (vc *VerdictCache) Get(fingerprint string) (*keys.Verdict, bool) {
	data, err := vc.cache.Get(fingerprint)
	if err != nil {
		// bigcache returns ErrEntryNotFound for both misses and evictions
		return nil, false
	}

	var verdict keys.Verdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		vc.logger.Error("failed to decode L1 verdict entry", "fingerprint", fingerprint, "error", err)
		_ = vc.cache.Delete(fingerprint)
		return nil, false
	}

	return &verdict, true
}

// Set stores a verdict by credential fingerprint
func (vc *VerdictCache) Set(fingerprint string, verdict keys.Verdict) {
	data, err := json.Marshal(verdict)
	if err != nil {
		vc.logger.Error("failed to encode L1 verdict entry", "fingerprint", fingerprint, "error", err)
		return
	}

	if err := vc.cache.Set(fingerprint, data); err != nil {
		vc.logger.Warn("failed to set L1 verdict entry", "fingerprint", fingerprint, "error", err)
	}
}

// Delete removes a verdict from the cache
func (vc *VerdictCache) Delete(fingerprint string) {
	_ = vc.cache.Delete(fingerprint)
}

// Len returns the number of cached verdicts
func (vc *VerdictCache) Len() int {
	return vc.cache.Len()
}
