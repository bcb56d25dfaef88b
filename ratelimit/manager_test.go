package ratelimit

import (
	"sync"
	"testing"

	"golang.org/x/time/rate"

	"github.com/carelink/keyguard/keys"
)

func TestNewManager(t *testing.T) {
	t.Run("with config", func(t *testing.T) {
		mgr := NewManager(map[keys.KeyType]RateLimit{
			keys.Anon: {PerMinute: 60, Burst: 10},
		})
		if mgr == nil {
			t.Fatal("expected non-nil manager")
		}
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		mgr := NewManager(nil)
		limit, burst := mgr.settingsForType(keys.Anon)
		want := rate.Limit(60.0 / 60.0)
		if limit != want {
			t.Errorf("expected default anon limit %v, got %v", want, limit)
		}
		if burst != 10 {
			t.Errorf("expected default anon burst 10, got %d", burst)
		}
	})
}

func TestManager_LimitsShrinkWithSensitivity(t *testing.T) {
	defaults := DefaultLimits()

	ladder := []keys.KeyType{keys.Public, keys.Anon, keys.Restricted, keys.Service}
	for i := 1; i < len(ladder); i++ {
		lower := defaults[ladder[i-1]]
		higher := defaults[ladder[i]]
		if higher.PerMinute > lower.PerMinute {
			t.Errorf("expected %v budget (%d/min) to not exceed %v budget (%d/min)",
				ladder[i], higher.PerMinute, ladder[i-1], lower.PerMinute)
		}
	}
}

func TestManager_Allow(t *testing.T) {
	mgr := NewManager(map[keys.KeyType]RateLimit{
		keys.Anon: {PerMinute: 60, Burst: 2},
	})

	fp := keys.Fingerprint("anon_key_1")

	// Burst of 2 allows two immediate requests, then blocks
	if !mgr.Allow(fp, keys.Anon) {
		t.Error("expected first request to pass")
	}
	if !mgr.Allow(fp, keys.Anon) {
		t.Error("expected second request to pass")
	}
	if mgr.Allow(fp, keys.Anon) {
		t.Error("expected third request to be limited")
	}

	// A different credential has its own budget
	if !mgr.Allow(keys.Fingerprint("anon_key_2"), keys.Anon) {
		t.Error("expected separate fingerprint to have its own limiter")
	}
}

func TestManager_UnconfiguredTypeFallsBack(t *testing.T) {
	mgr := NewManager(map[keys.KeyType]RateLimit{
		keys.Anon: {PerMinute: 60, Burst: 10},
	})

	limit, burst := mgr.settingsForType(keys.Admin)
	fallback := DefaultLimits()[keys.Restricted]
	wantLimit := rate.Limit(float64(fallback.PerMinute) / 60.0)
	if limit != wantLimit {
		t.Errorf("expected fallback limit %v, got %v", wantLimit, limit)
	}
	if burst != fallback.Burst {
		t.Errorf("expected fallback burst %d, got %d", fallback.Burst, burst)
	}
}

func TestManager_SetConfigRebuildsLimiters(t *testing.T) {
	mgr := NewManager(map[keys.KeyType]RateLimit{
		keys.Anon: {PerMinute: 60, Burst: 1},
	})

	fp := keys.Fingerprint("anon_key_1")
	if !mgr.Allow(fp, keys.Anon) {
		t.Fatal("expected first request to pass")
	}
	if mgr.Allow(fp, keys.Anon) {
		t.Fatal("expected second request to be limited at burst 1")
	}

	mgr.SetConfig(map[keys.KeyType]RateLimit{
		keys.Anon: {PerMinute: 60, Burst: 5},
	})

	// New config rebuilt the limiter with a fresh burst allowance
	if !mgr.Allow(fp, keys.Anon) {
		t.Error("expected request to pass after config rebuild")
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	mgr := NewManager(nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			fp := keys.Fingerprint(string(rune('a' + i%8)))
			mgr.Allow(fp, keys.KeyType(i%6))
		}(i)
	}
	wg.Wait()
}
