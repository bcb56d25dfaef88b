package cache

import "time"

// BigCacheConfig represents the in-process (L1) verdict cache configuration
type BigCacheConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled"`
	SizeMB       int           `yaml:"size_mb" json:"size_mb"`
	MaxEntrySize int           `yaml:"max_entry_size" json:"max_entry_size"`
	Shards       int           `yaml:"shards" json:"shards"` // must be power of 2
	TTL          time.Duration `yaml:"ttl" json:"ttl"`
}

func (c *BigCacheConfig) ApplyDefaults() {
	if c.SizeMB == 0 {
		c.SizeMB = 16
	}
	if c.MaxEntrySize == 0 {
		c.MaxEntrySize = 4096
	}
	if c.Shards == 0 {
		c.Shards = 64 // power of 2
	}
	if c.TTL == 0 {
		c.TTL = 10 * time.Minute
	}
}

// RedisConfig represents the shared (L2) verdict cache configuration
type RedisConfig struct {
	Enabled     bool          `yaml:"enabled" json:"enabled"`
	Addr        string        `yaml:"addr" json:"addr"`
	Password    string        `yaml:"password" json:"password"`
	DB          int           `yaml:"db" json:"db"`
	KeyPrefix   string        `yaml:"key_prefix" json:"key_prefix"`
	TTL         time.Duration `yaml:"ttl" json:"ttl"`
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`
	SendTimeout time.Duration `yaml:"send_timeout" json:"send_timeout"`
}

func (c *RedisConfig) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "keyguard:verdict:"
	}
	if c.TTL == 0 {
		c.TTL = time.Hour
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 1000 * time.Millisecond
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 1000 * time.Millisecond
	}
	if c.SendTimeout == 0 {
		c.SendTimeout = 1000 * time.Millisecond
	}
}
