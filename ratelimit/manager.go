package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/carelink/keyguard/keys"
)

// RateLimit configures request throughput for one credential classification
type RateLimit struct {
	PerMinute int `yaml:"per_minute" json:"per_minute"`
	Burst     int `yaml:"burst" json:"burst"`
}

// Manager hands out per-fingerprint rate limiters whose limits depend on the
// credential's classification: the more sensitive the classification, the
// fewer external requests it should ever make, so limits shrink as
// sensitivity grows.
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	config   map[keys.KeyType]RateLimit
}

// DefaultLimits maps each classification to its default request budget.
// Service-grade credentials should not be calling the public API at all;
// they get a single-digit budget so abuse is visible without being silent.
func DefaultLimits() map[keys.KeyType]RateLimit {
	return map[keys.KeyType]RateLimit{
		keys.Public:     {PerMinute: 120, Burst: 20},
		keys.Anon:       {PerMinute: 60, Burst: 10},
		keys.Restricted: {PerMinute: 30, Burst: 5},
		keys.Service:    {PerMinute: 6, Burst: 1},
		keys.Admin:      {PerMinute: 6, Burst: 1},
		keys.Secret:     {PerMinute: 6, Burst: 1},
	}
}

// NewManager creates a rate limiter manager. A nil config uses DefaultLimits.
func NewManager(config map[keys.KeyType]RateLimit) *Manager {
	if config == nil {
		config = DefaultLimits()
	}
	return &Manager{
		limiters: make(map[string]*rate.Limiter),
		config:   config,
	}
}

// SetConfig applies a new configuration and drops existing limiters so they
// are rebuilt with the new settings on next use
func (m *Manager) SetConfig(config map[keys.KeyType]RateLimit) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config = config
	m.limiters = make(map[string]*rate.Limiter)
}

// Allow reports whether a request presenting the credential identified by
// fingerprint may proceed under its classification's budget
func (m *Manager) Allow(fingerprint string, keyType keys.KeyType) bool {
	return m.limiter(fingerprint, keyType).Allow()
}

func (m *Manager) limiter(fingerprint string, keyType keys.KeyType) *rate.Limiter {
	mapKey := keyType.String() + "|" + fingerprint

	m.mu.RLock()
	if lim, ok := m.limiters[mapKey]; ok {
		m.mu.RUnlock()
		return lim
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if lim, ok := m.limiters[mapKey]; ok {
		return lim
	}

	limit, burst := m.settingsForType(keyType)
	lim := rate.NewLimiter(limit, burst)
	m.limiters[mapKey] = lim
	return lim
}

func (m *Manager) settingsForType(keyType keys.KeyType) (rate.Limit, int) {
	cfg, ok := m.config[keyType]
	if !ok || cfg.PerMinute <= 0 {
		// Unconfigured types fall back to the restricted budget
		cfg = DefaultLimits()[keys.Restricted]
	}

	limit := rate.Limit(float64(cfg.PerMinute) / 60.0)
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return limit, burst
}
