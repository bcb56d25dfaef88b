package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/carelink/keyguard/keys"
	"github.com/carelink/keyguard/ratelimit"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.ListenAddr != ":8090" {
		t.Errorf("expected listen addr :8090, got %s", cfg.ListenAddr)
	}
	if cfg.MaxKeyLength != 500 {
		t.Errorf("expected max key length 500, got %d", cfg.MaxKeyLength)
	}
	if cfg.MaskShow != 4 {
		t.Errorf("expected mask show 4, got %d", cfg.MaskShow)
	}
	if cfg.AuditInterval != 5*time.Minute {
		t.Errorf("expected audit interval 5m, got %v", cfg.AuditInterval)
	}
	if cfg.Report.MaxRetries != 3 {
		t.Errorf("expected report max retries 3, got %d", cfg.Report.MaxRetries)
	}
}

func TestWithOptions(t *testing.T) {
	cfg := New(
		WithListenAddr(":9000"),
		WithMaxKeyLength(200),
		WithMaskShow(6),
		WithSuffixes([]string{"_CRED"}),
		WithDenylist([]string{"blocked"}),
		WithAuditInterval(time.Minute),
		WithReportURL("http://reports.internal/keyguard"),
		WithRateLimits(map[keys.KeyType]ratelimit.RateLimit{
			keys.Anon: {PerMinute: 10, Burst: 2},
		}),
	)

	if cfg.ListenAddr != ":9000" {
		t.Errorf("expected listen addr :9000, got %s", cfg.ListenAddr)
	}
	if cfg.MaxKeyLength != 200 {
		t.Errorf("expected max key length 200, got %d", cfg.MaxKeyLength)
	}
	if cfg.MaskShow != 6 {
		t.Errorf("expected mask show 6, got %d", cfg.MaskShow)
	}
	if len(cfg.Suffixes) != 1 || cfg.Suffixes[0] != "_CRED" {
		t.Errorf("unexpected suffixes %v", cfg.Suffixes)
	}
	if cfg.AuditInterval != time.Minute {
		t.Errorf("expected audit interval 1m, got %v", cfg.AuditInterval)
	}
	if !cfg.Report.Enabled || cfg.Report.URL != "http://reports.internal/keyguard" {
		t.Errorf("unexpected report config %+v", cfg.Report)
	}
	if cfg.RateLimits[keys.Anon].PerMinute != 10 {
		t.Errorf("unexpected rate limits %+v", cfg.RateLimits)
	}
}

func TestLoadFromFile(t *testing.T) {
	content := `
listen_addr: ":9100"
max_key_length: 300
audit_interval: 2m
denylist:
  - service_role
  - eyJ
rate_limits:
  anon:
    per_minute: 30
    burst: 5
  service:
    per_minute: 2
    burst: 1
l1_cache:
  enabled: true
  size_mb: 8
report:
  enabled: true
  url: http://reports.internal/keyguard
`
	dir := t.TempDir()
	path := filepath.Join(dir, "keyguard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile returned error: %v", err)
	}

	if cfg.ListenAddr != ":9100" {
		t.Errorf("expected listen addr :9100, got %s", cfg.ListenAddr)
	}
	if cfg.MaxKeyLength != 300 {
		t.Errorf("expected max key length 300, got %d", cfg.MaxKeyLength)
	}
	if cfg.AuditInterval != 2*time.Minute {
		t.Errorf("expected audit interval 2m, got %v", cfg.AuditInterval)
	}
	if len(cfg.Denylist) != 2 {
		t.Errorf("expected 2 denylist entries, got %d", len(cfg.Denylist))
	}
	if cfg.RateLimits[keys.Anon].PerMinute != 30 {
		t.Errorf("unexpected anon rate limit %+v", cfg.RateLimits[keys.Anon])
	}
	if cfg.RateLimits[keys.Service].Burst != 1 {
		t.Errorf("unexpected service rate limit %+v", cfg.RateLimits[keys.Service])
	}
	if !cfg.L1Cache.Enabled || cfg.L1Cache.SizeMB != 8 {
		t.Errorf("unexpected l1 cache config %+v", cfg.L1Cache)
	}
	if !cfg.Report.Enabled {
		t.Error("expected report shipping to be enabled")
	}
}

func TestLoadFromFile_InvalidKeyType(t *testing.T) {
	content := `
rate_limits:
  banana:
    per_minute: 30
`
	dir := t.TempDir()
	path := filepath.Join(dir, "keyguard.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected error for unknown key type in rate limits")
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/keyguard.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("KEYGUARD_LISTEN_ADDR", ":9200")
	t.Setenv("KEYGUARD_MAX_KEY_LENGTH", "250")
	t.Setenv("KEYGUARD_AUDIT_INTERVAL", "90s")
	t.Setenv("KEYGUARD_SUFFIXES", "_KEY,_SECRET,_TOKEN,_CRED")
	t.Setenv("KEYGUARD_REDIS_ADDR", "redis:6379")
	t.Setenv("KEYGUARD_REPORT_URL", "http://reports.internal/keyguard")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}

	if cfg.ListenAddr != ":9200" {
		t.Errorf("expected listen addr :9200, got %s", cfg.ListenAddr)
	}
	if cfg.MaxKeyLength != 250 {
		t.Errorf("expected max key length 250, got %d", cfg.MaxKeyLength)
	}
	if cfg.AuditInterval != 90*time.Second {
		t.Errorf("expected audit interval 90s, got %v", cfg.AuditInterval)
	}
	if len(cfg.Suffixes) != 4 {
		t.Errorf("expected 4 suffixes, got %v", cfg.Suffixes)
	}
	if !cfg.L2Cache.Enabled || cfg.L2Cache.Addr != "redis:6379" {
		t.Errorf("unexpected l2 cache config %+v", cfg.L2Cache)
	}
	if !cfg.Report.Enabled {
		t.Error("expected report shipping to be enabled via env")
	}
}

func TestValidate(t *testing.T) {
	if err := New().Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}

	tests := []struct {
		name string
		cfg  *Config
	}{
		{"empty listen addr", New(WithListenAddr(""))},
		{"zero max key length", New(WithMaxKeyLength(0))},
		{"negative mask show", New(WithMaskShow(-1))},
		{"zero audit interval", New(WithAuditInterval(0))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	// Report enabled without URL
	cfg := New()
	cfg.Report.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for enabled report without URL")
	}
}
