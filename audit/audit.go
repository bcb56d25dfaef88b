package audit

import (
	"log/slog"
	"time"

	"github.com/carelink/keyguard/keystore"
	"github.com/carelink/keyguard/metrics"
)

// UsageAuditor is the slice of the key manager the auditor needs
type UsageAuditor interface {
	AuditKeyUsage() []keystore.AuditRecord
}

// Report summarizes credential compliance across the environment index.
// A process with no indexed credentials reports 100% compliance with NoData
// set, never a division fault.
type Report struct {
	TotalKeys      int                    `json:"total_keys"`
	Violations     int                    `json:"violations"`
	ComplianceRate float64                `json:"compliance_rate"`
	NoData         bool                   `json:"no_data,omitempty"`
	Details        []keystore.AuditRecord `json:"details"`
	GeneratedAt    time.Time              `json:"generated_at"`
}

// Auditor produces compliance reports from a key manager
type Auditor struct {
	source  UsageAuditor
	logger  *slog.Logger
	metrics metrics.MetricsRecorder
}

// Option is a functional option for configuring an Auditor
type Option func(*Auditor)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(a *Auditor) {
		a.logger = logger
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(rec metrics.MetricsRecorder) Option {
	return func(a *Auditor) {
		a.metrics = rec
	}
}

// New creates an Auditor over the given usage source
func New(source UsageAuditor, opts ...Option) *Auditor {
	a := &Auditor{
		source:  source,
		logger:  slog.Default(),
		metrics: metrics.NewNoopMetrics(),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Report computes the current compliance report
func (a *Auditor) Report() Report {
	details := a.source.AuditKeyUsage()

	violations := 0
	for _, rec := range details {
		if rec.Compliance == keystore.ComplianceFail {
			violations++
		}
	}

	report := Report{
		TotalKeys:   len(details),
		Violations:  violations,
		Details:     details,
		GeneratedAt: time.Now().UTC(),
	}

	if report.TotalKeys == 0 {
		report.ComplianceRate = 100
		report.NoData = true
	} else {
		report.ComplianceRate = float64(report.TotalKeys-violations) / float64(report.TotalKeys) * 100
	}

	a.metrics.SetComplianceRate(report.ComplianceRate)

	if violations > 0 {
		a.logger.Warn("credential compliance violations found",
			"total_keys", report.TotalKeys,
			"violations", violations,
			"compliance_rate", report.ComplianceRate,
		)
	}

	return report
}
