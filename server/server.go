package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/carelink/keyguard/audit"
	"github.com/carelink/keyguard/cache"
	"github.com/carelink/keyguard/cache/l1"
	"github.com/carelink/keyguard/cache/l2"
	"github.com/carelink/keyguard/config"
	"github.com/carelink/keyguard/keys"
	"github.com/carelink/keyguard/keystore"
	"github.com/carelink/keyguard/metrics"
	"github.com/carelink/keyguard/middleware"
	"github.com/carelink/keyguard/ratelimit"
	"github.com/carelink/keyguard/scheduler"
	"github.com/carelink/keyguard/shipper"
)

// Server wires the key manager, credential gates and audit reporting into a
// single HTTP surface.
type Server struct {
	config        *config.Config
	manager       *keystore.Manager
	auditor       *audit.Auditor
	guard         *middleware.Guard
	mux           *http.ServeMux
	logger        *slog.Logger
	metrics       metrics.MetricsRecorder
	reportShipper *shipper.Shipper
	auditLoop     *scheduler.Scheduler
	enableMetrics bool
	metricsPath   string
}

type Option func(*Server)

func WithConfig(cfg *config.Config) Option {
	return func(s *Server) {
		s.config = cfg
	}
}

// WithManager injects an already-constructed key manager. Without it the
// server scans os.Environ at construction.
func WithManager(m *keystore.Manager) Option {
	return func(s *Server) {
		s.manager = m
	}
}

func WithGuard(g *middleware.Guard) Option {
	return func(s *Server) {
		s.guard = g
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithMetrics(enable bool) Option {
	return func(s *Server) {
		s.enableMetrics = enable
	}
}

func WithMetricsPath(path string) Option {
	return func(s *Server) {
		s.metricsPath = path
	}
}

func WithShipper(sh *shipper.Shipper) Option {
	return func(s *Server) {
		s.reportShipper = sh
	}
}

func New(opts ...Option) (*Server, error) {
	s := &Server{
		logger:        slog.Default(),
		enableMetrics: true,
		metricsPath:   "/metrics",
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.config == nil {
		cfg, err := config.LoadFromEnv()
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		s.config = cfg
	}

	if err := s.config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if s.enableMetrics {
		s.metrics = metrics.NewPrometheusMetrics()
	} else {
		s.metrics = metrics.NewNoopMetrics()
	}

	validator := keys.NewValidator(
		keys.WithMaxKeyLength(s.config.MaxKeyLength),
		keys.WithMaskShow(s.config.MaskShow),
	)

	if s.manager == nil {
		s.manager = keystore.New(os.Environ(),
			keystore.WithValidator(validator),
			keystore.WithLogger(s.logger),
			keystore.WithMetrics(s.metrics),
			keystore.WithSuffixes(s.config.Suffixes),
		)
	}

	if s.guard == nil {
		guardOpts := []middleware.Option{
			middleware.WithValidator(validator),
			middleware.WithLogger(s.logger),
			middleware.WithMetrics(s.metrics),
			middleware.WithDenylist(s.config.Denylist),
			middleware.WithRateLimiter(ratelimit.NewManager(s.config.RateLimits)),
		}

		verdictCache, err := s.buildVerdictCache()
		if err != nil {
			return nil, fmt.Errorf("failed to build verdict cache: %w", err)
		}
		if verdictCache != nil {
			guardOpts = append(guardOpts, middleware.WithVerdictCache(verdictCache))
		}

		s.guard = middleware.New(guardOpts...)
	}

	s.auditor = audit.New(s.manager,
		audit.WithLogger(s.logger),
		audit.WithMetrics(s.metrics),
	)

	if s.config.Report.Enabled && s.reportShipper == nil {
		s.reportShipper = shipper.New(s.config.Report.URL,
			shipper.WithMaxRetries(s.config.Report.MaxRetries),
			shipper.WithBaseBackoff(s.config.Report.BaseBackoff),
			shipper.WithChunkSize(s.config.Report.ChunkSize),
			shipper.WithLogger(s.logger),
		)
	}

	s.auditLoop = scheduler.New(s.config.AuditInterval, s.runAudit)

	s.setupRoutes()

	return s, nil
}

// buildVerdictCache prefers the in-process cache, falling back to the shared
// Redis cache when only that one is enabled
func (s *Server) buildVerdictCache() (cache.Cache, error) {
	if s.config.L1Cache.Enabled {
		return l1.New(&s.config.L1Cache)
	}
	if s.config.L2Cache.Enabled {
		client := l2.NewClient(&s.config.L2Cache)
		return l2.New(&s.config.L2Cache, client), nil
	}
	return nil, nil
}

// runAudit refreshes the compliance gauge and ships the report if a sink is
// configured
func (s *Server) runAudit() {
	report := s.auditor.Report()

	if s.reportShipper == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if err := s.reportShipper.Ship(ctx, report); err != nil {
		s.logger.Error("failed to ship audit report", "error", err)
	}
}

func (s *Server) setupRoutes() {
	s.mux = http.NewServeMux()

	s.mux.HandleFunc("/keys/safe", s.SafeKeysHandler)
	s.mux.HandleFunc("/audit/report", s.AuditReportHandler)
	s.mux.HandleFunc("/health", s.HealthHandler)

	if s.enableMetrics {
		s.mux.Handle(s.metricsPath, promhttp.Handler())
	}
}

// SafeKeysHandler returns the keys cleared for front-end exposure
func (s *Server) SafeKeysHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	response := map[string]interface{}{
		"keys": s.manager.SafeKeysForFrontend(),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("failed to encode safe keys response", "error", err)
	}
}

// AuditReportHandler returns the current compliance report
func (s *Server) AuditReportHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(s.auditor.Report()); err != nil {
		s.logger.Error("failed to encode audit report", "error", err)
	}
}

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	response := map[string]interface{}{
		"status":       "ok",
		"indexed_keys": s.manager.IndexedKeyCount(),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("failed to encode health response", "error", err)
	}
}

// Protect wraps a downstream handler with both credential gates: the
// denylist scan first, then credential validation for the named operation
func (s *Server) Protect(operation string, next http.Handler) http.Handler {
	return s.guard.BlockSensitiveCredentials(s.guard.ValidateAPICredentials(operation, next))
}

func (s *Server) ListenAndServe(addr string) error {
	log.Printf("[keyguard] starting on %s", addr)
	log.Printf("[keyguard] indexed %d environment credentials, audit every %v",
		s.manager.IndexedKeyCount(), s.config.AuditInterval)

	if s.enableMetrics {
		log.Printf("[keyguard] metrics available at %s", s.metricsPath)
	}

	s.auditLoop.Start()
	defer s.auditLoop.Stop()

	return http.ListenAndServe(addr, s.mux)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the http.Handler for the server
// Useful for integrating with other HTTP servers or routers
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Config() *config.Config {
	return s.config
}

// Manager returns the underlying key manager
func (s *Server) Manager() *keystore.Manager {
	return s.manager
}

// StartAuditLoop starts the periodic audit refresh without serving HTTP
func (s *Server) StartAuditLoop() {
	s.auditLoop.Start()
}

// StopAuditLoop stops the periodic audit refresh
func (s *Server) StopAuditLoop() {
	s.auditLoop.Stop()
}

// MustNew creates a new server and panics on error
// Useful for quick prototyping
func MustNew(opts ...Option) *Server {
	srv, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create server: %v", err))
	}
	return srv
}
