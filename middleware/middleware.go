package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/carelink/keyguard/cache"
	"github.com/carelink/keyguard/keys"
	"github.com/carelink/keyguard/metrics"
	"github.com/carelink/keyguard/ratelimit"
)

// maxBodyBytes caps how much of a request body the gates will buffer.
// Larger bodies cannot be scanned in full, so the denylist gate rejects
// them outright rather than letting unscanned content through.
const maxBodyBytes = 1 << 20

// DefaultDenylist holds the substrings that reject a payload outright. This
// is a blunt content filter independent of the structured classifier: it
// catches secrets smuggled inside unrelated fields that the credential
// extraction would never look at.
var DefaultDenylist = []string{
	"service_role",
	"admin_key",
	"root_key",
	"master_key",
	"eyJ",
	"sk_",
	"rk_",
}

type contextKey int

const verdictContextKey contextKey = iota

// VerdictFromContext returns the verdict attached by ValidateAPICredentials
func VerdictFromContext(ctx context.Context) (keys.Verdict, bool) {
	verdict, ok := ctx.Value(verdictContextKey).(keys.Verdict)
	return verdict, ok
}

// Guard carries the shared state behind the credential gates. Construct one
// per process and reuse it across routes.
type Guard struct {
	validator *keys.Validator
	logger    *slog.Logger
	metrics   metrics.MetricsRecorder
	verdicts  cache.Cache
	limiter   *ratelimit.Manager
	denylist  []string
}

// Option is a functional option for configuring a Guard
type Option func(*Guard)

// WithValidator sets the credential validator
func WithValidator(v *keys.Validator) Option {
	return func(g *Guard) {
		g.validator = v
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		g.logger = logger
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(rec metrics.MetricsRecorder) Option {
	return func(g *Guard) {
		g.metrics = rec
	}
}

// WithVerdictCache enables verdict caching by credential fingerprint
func WithVerdictCache(c cache.Cache) Option {
	return func(g *Guard) {
		g.verdicts = c
	}
}

// WithRateLimiter enables per-classification rate limiting of
// credential-bearing requests
func WithRateLimiter(m *ratelimit.Manager) Option {
	return func(g *Guard) {
		g.limiter = m
	}
}

// WithDenylist overrides the sensitive-content denylist
func WithDenylist(patterns []string) Option {
	return func(g *Guard) {
		if len(patterns) > 0 {
			g.denylist = patterns
		}
	}
}

// New creates a Guard with default validator, noop metrics and no cache
func New(opts ...Option) *Guard {
	g := &Guard{
		logger:   slog.Default(),
		metrics:  metrics.NewNoopMetrics(),
		verdicts: cache.NewNoOpCache(),
		denylist: DefaultDenylist,
	}

	for _, opt := range opts {
		opt(g)
	}

	if g.validator == nil {
		g.validator = keys.NewValidator()
	}

	return g
}

// ValidateAPICredentials gates a protected operation on any credential the
// request presents. Requests without a credential pass through unchanged:
// the gate is opportunistic, not universally mandatory. When a credential is
// found it must validate and be client-safe; the verdict is attached to the
// request context for downstream handlers.
func (g *Guard) ValidateAPICredentials(operation string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, found := g.extractCredential(r)
		if !found {
			next.ServeHTTP(w, r)
			return
		}

		fingerprint := keys.Fingerprint(raw)
		verdict := g.lookupVerdict(raw, fingerprint, operation)

		if g.limiter != nil && !g.limiter.Allow(fingerprint, verdict.KeyType) {
			g.metrics.RecordRequestGate("credentials", "rate_limited")
			g.logger.Warn("rate limited credential-bearing request",
				"operation", operation,
				"key_type", verdict.KeyType.String(),
				"fingerprint", fingerprint,
			)
			writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		if !verdict.Valid {
			g.metrics.RecordRequestGate("credentials", "unauthorized")
			g.logger.Warn("rejected invalid API credential",
				"operation", operation,
				"reason", verdict.Reason,
				"masked_value", verdict.MaskedValue,
			)
			writeJSONError(w, http.StatusUnauthorized, "Invalid API credentials")
			return
		}

		if !verdict.ClientSafe {
			g.metrics.RecordRequestGate("credentials", "forbidden")
			g.logger.Warn("blocked service-level credential in API request",
				"operation", operation,
				"key_type", verdict.KeyType.String(),
				"masked_value", verdict.MaskedValue,
			)
			writeJSONError(w, http.StatusForbidden, "Service-level credentials not allowed in API requests")
			return
		}

		g.metrics.RecordRequestGate("credentials", "passed")
		ctx := context.WithValue(r.Context(), verdictContextKey, verdict)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (g *Guard) lookupVerdict(raw, fingerprint, operation string) keys.Verdict {
	if cached, ok := g.verdicts.Get(fingerprint); ok {
		verdict := *cached
		verdict.Context = operation
		return verdict
	}

	verdict := g.validator.Validate(raw, operation)
	g.metrics.RecordClassification(verdict.KeyType.String())
	g.verdicts.Set(fingerprint, verdict)
	return verdict
}

// extractCredential pulls a candidate key from the request. Priority order
// is fixed: Authorization header, then X-API-Key, then a JSON body field
// named api_key. The first source that yields a candidate wins; later
// sources are not consulted.
func (g *Guard) extractCredential(r *http.Request) (string, bool) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && (parts[0] == "Bearer" || parts[0] == "ApiKey") {
			return parts[1], true
		}
	}

	if key := r.Header.Get("X-API-Key"); key != "" {
		return key, true
	}

	if isJSONRequest(r) {
		body, _, ok := peekBody(r)
		if !ok {
			return "", false
		}

		var payload map[string]json.RawMessage
		if err := json.Unmarshal(body, &payload); err == nil {
			if rawKey, ok := payload["api_key"]; ok {
				var key string
				if err := json.Unmarshal(rawKey, &key); err == nil && key != "" {
					return key, true
				}
			}
		}
	}

	return "", false
}

func isJSONRequest(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// BlockSensitiveCredentials is the stricter, independent gate: it scans
// every string value of a JSON body and every form field against the
// denylist and rejects the whole request on any match.
func (g *Guard) BlockSensitiveCredentials(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, overCap, ok := peekBody(r)
		if overCap {
			g.metrics.RecordRequestGate("denylist", "too_large")
			g.logger.Warn("rejected payload too large to scan",
				"path", r.URL.Path,
				"limit_bytes", maxBodyBytes,
			)
			writeJSONError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}

		if ok {
			if hit, pattern := g.scanBody(r.Header.Get("Content-Type"), body); hit {
				g.metrics.RecordRequestGate("denylist", "forbidden")
				g.logger.Warn("blocked payload containing sensitive credential pattern",
					"pattern", pattern,
					"path", r.URL.Path,
				)
				writeJSONError(w, http.StatusForbidden, "Service-level credentials detected and blocked")
				return
			}
		}

		g.metrics.RecordRequestGate("denylist", "passed")
		next.ServeHTTP(w, r)
	})
}

func (g *Guard) scanBody(contentType string, body []byte) (bool, string) {
	switch {
	case strings.HasPrefix(contentType, "application/json"):
		var payload interface{}
		if err := json.Unmarshal(body, &payload); err != nil {
			return false, ""
		}
		return g.scanValue(payload)

	case strings.HasPrefix(contentType, "application/x-www-form-urlencoded"):
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return false, ""
		}
		for _, values := range form {
			for _, value := range values {
				if hit, pattern := g.matchDenylist(value); hit {
					return true, pattern
				}
			}
		}
	}

	return false, ""
}

// scanValue walks a decoded JSON document and checks every string leaf
func (g *Guard) scanValue(v interface{}) (bool, string) {
	switch val := v.(type) {
	case string:
		return g.matchDenylist(val)
	case map[string]interface{}:
		for _, item := range val {
			if hit, pattern := g.scanValue(item); hit {
				return true, pattern
			}
		}
	case []interface{}:
		for _, item := range val {
			if hit, pattern := g.scanValue(item); hit {
				return true, pattern
			}
		}
	}
	return false, ""
}

func (g *Guard) matchDenylist(value string) (bool, string) {
	lower := strings.ToLower(value)
	for _, pattern := range g.denylist {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true, pattern
		}
	}
	return false, ""
}

// peekBody buffers the request body up to the scan cap and restores it so
// downstream handlers read every byte: the buffered prefix is stitched back
// onto the unread remainder. overCap reports a body larger than the cap; such
// bodies cannot be scanned in full and carry no buffered copy.
func peekBody(r *http.Request) (body []byte, overCap bool, ok bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, false, false
	}

	peeked, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, false, false
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(peeked), r.Body))

	if len(peeked) > maxBodyBytes {
		return nil, true, false
	}
	return peeked, false, true
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
