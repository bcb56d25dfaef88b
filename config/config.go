package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/carelink/keyguard/cache"
	"github.com/carelink/keyguard/keys"
	"github.com/carelink/keyguard/ratelimit"
)

// ReportConfig configures shipping of audit reports to an external sink
type ReportConfig struct {
	Enabled     bool          `yaml:"enabled"`
	URL         string        `yaml:"url"`
	MaxRetries  int           `yaml:"max_retries"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	ChunkSize   int           `yaml:"chunk_size"` // audit detail records per POST
}

type Config struct {
	ListenAddr    string                               `yaml:"listen_addr"`
	MaxKeyLength  int                                  `yaml:"max_key_length"`
	MaskShow      int                                  `yaml:"mask_show"`
	Suffixes      []string                             `yaml:"suffixes"`
	Denylist      []string                             `yaml:"denylist"`
	AuditInterval time.Duration                        `yaml:"audit_interval"`
	RateLimits    map[keys.KeyType]ratelimit.RateLimit `yaml:"rate_limits"`
	L1Cache       cache.BigCacheConfig                 `yaml:"l1_cache"`
	L2Cache       cache.RedisConfig                    `yaml:"l2_cache"`
	Report        ReportConfig                         `yaml:"report"`
}

type Option func(*Config)

func New(opts ...Option) *Config {
	cfg := &Config{
		ListenAddr:    ":8090",
		MaxKeyLength:  keys.DefaultMaxKeyLength,
		MaskShow:      keys.DefaultMaskShow,
		AuditInterval: 5 * time.Minute,
		Report: ReportConfig{
			MaxRetries:  3,
			BaseBackoff: time.Second,
			ChunkSize:   100,
		},
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

func WithListenAddr(addr string) Option {
	return func(c *Config) {
		c.ListenAddr = addr
	}
}

func WithMaxKeyLength(n int) Option {
	return func(c *Config) {
		c.MaxKeyLength = n
	}
}

func WithMaskShow(n int) Option {
	return func(c *Config) {
		c.MaskShow = n
	}
}

func WithSuffixes(suffixes []string) Option {
	return func(c *Config) {
		c.Suffixes = suffixes
	}
}

func WithDenylist(patterns []string) Option {
	return func(c *Config) {
		c.Denylist = patterns
	}
}

func WithAuditInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.AuditInterval = interval
	}
}

func WithRateLimits(limits map[keys.KeyType]ratelimit.RateLimit) Option {
	return func(c *Config) {
		c.RateLimits = limits
	}
}

func WithReportURL(url string) Option {
	return func(c *Config) {
		c.Report.Enabled = url != ""
		c.Report.URL = url
	}
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Load loads configuration from the KEYGUARD_CONFIG_FILE environment
// variable or from the default path "keyguard.yaml"
func Load() (*Config, error) {
	configFile := os.Getenv("KEYGUARD_CONFIG_FILE")
	if configFile == "" {
		configFile = "keyguard.yaml"
	}
	return LoadFromFile(configFile)
}

// LoadFromEnv loads configuration from environment variables
// This provides a way to configure without a config file
func LoadFromEnv() (*Config, error) {
	cfg := New()

	if addr := os.Getenv("KEYGUARD_LISTEN_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}

	if lenStr := os.Getenv("KEYGUARD_MAX_KEY_LENGTH"); lenStr != "" {
		if n, err := strconv.Atoi(lenStr); err == nil {
			cfg.MaxKeyLength = n
		}
	}

	if showStr := os.Getenv("KEYGUARD_MASK_SHOW"); showStr != "" {
		if n, err := strconv.Atoi(showStr); err == nil {
			cfg.MaskShow = n
		}
	}

	if suffixes := os.Getenv("KEYGUARD_SUFFIXES"); suffixes != "" {
		cfg.Suffixes = strings.Split(suffixes, ",")
	}

	if denylist := os.Getenv("KEYGUARD_DENYLIST"); denylist != "" {
		cfg.Denylist = strings.Split(denylist, ",")
	}

	if intervalStr := os.Getenv("KEYGUARD_AUDIT_INTERVAL"); intervalStr != "" {
		if interval, err := time.ParseDuration(intervalStr); err == nil {
			cfg.AuditInterval = interval
		}
	}

	if enabledStr := os.Getenv("KEYGUARD_L1_CACHE_ENABLED"); enabledStr != "" {
		if enabled, err := strconv.ParseBool(enabledStr); err == nil {
			cfg.L1Cache.Enabled = enabled
		}
	}

	if addr := os.Getenv("KEYGUARD_REDIS_ADDR"); addr != "" {
		cfg.L2Cache.Enabled = true
		cfg.L2Cache.Addr = addr
	}
	if password := os.Getenv("KEYGUARD_REDIS_PASSWORD"); password != "" {
		cfg.L2Cache.Password = password
	}

	if url := os.Getenv("KEYGUARD_REPORT_URL"); url != "" {
		cfg.Report.Enabled = true
		cfg.Report.URL = url
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}

	if c.MaxKeyLength <= 0 {
		return fmt.Errorf("max key length must be positive")
	}

	if c.MaskShow <= 0 {
		return fmt.Errorf("mask show must be positive")
	}

	if c.AuditInterval <= 0 {
		return fmt.Errorf("audit interval must be positive")
	}

	if c.Report.Enabled && c.Report.URL == "" {
		return fmt.Errorf("report URL is required when report shipping is enabled")
	}

	if c.Report.ChunkSize < 0 {
		return fmt.Errorf("report chunk size must be non-negative")
	}

	return nil
}
