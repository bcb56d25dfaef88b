package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsRecorder interface {
	RecordClassification(keyType string)
	RecordValidation(status string)
	RecordKeyLookup(status string)
	RecordRequestGate(gate, outcome string)
	SetIndexedKeys(count int)
	SetComplianceRate(rate float64)
}

type NoopMetrics struct{}

func NewNoopMetrics() MetricsRecorder {
	return &NoopMetrics{}
}

func (n *NoopMetrics) RecordClassification(keyType string) {}

func (n *NoopMetrics) RecordValidation(status string) {}

func (n *NoopMetrics) RecordKeyLookup(status string) {}

func (n *NoopMetrics) RecordRequestGate(gate, outcome string) {}

func (n *NoopMetrics) SetIndexedKeys(count int) {}

func (n *NoopMetrics) SetComplianceRate(rate float64) {}

type PrometheusMetrics struct {
	classifications *prometheus.CounterVec
	validations     *prometheus.CounterVec
	keyLookups      *prometheus.CounterVec
	requestGates    *prometheus.CounterVec
	indexedKeys     prometheus.Gauge
	complianceRate  prometheus.Gauge
}

func NewPrometheusMetrics() MetricsRecorder {
	return &PrometheusMetrics{
		classifications: Classifications,
		validations:     Validations,
		keyLookups:      KeyLookups,
		requestGates:    RequestGates,
		indexedKeys:     IndexedKeys,
		complianceRate:  ComplianceRate,
	}
}

func (p *PrometheusMetrics) RecordClassification(keyType string) {
	p.classifications.WithLabelValues(keyType).Inc()
}

func (p *PrometheusMetrics) RecordValidation(status string) {
	p.validations.WithLabelValues(status).Inc()
}

func (p *PrometheusMetrics) RecordKeyLookup(status string) {
	p.keyLookups.WithLabelValues(status).Inc()
}

func (p *PrometheusMetrics) RecordRequestGate(gate, outcome string) {
	p.requestGates.WithLabelValues(gate, outcome).Inc()
}

func (p *PrometheusMetrics) SetIndexedKeys(count int) {
	p.indexedKeys.Set(float64(count))
}

func (p *PrometheusMetrics) SetComplianceRate(rate float64) {
	p.complianceRate.Set(rate)
}

var (
	// Classifications tracks key classification outcomes by sensitivity type
	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyguard_classifications_total",
		Help: "The total number of credential classifications by key type",
	}, []string{"key_type"})

	// Validations tracks credential validation outcomes
	Validations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyguard_validations_total",
		Help: "The total number of credential validations",
	}, []string{"status"}) // status: "valid", "rejected"

	// KeyLookups tracks client-safe key lookups against the environment index
	KeyLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyguard_key_lookups_total",
		Help: "The total number of client-safe key lookups",
	}, []string{"status"}) // status: "released", "blocked", "unknown"

	// RequestGates tracks middleware gate decisions
	RequestGates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyguard_request_gates_total",
		Help: "The total number of request gate decisions",
	}, []string{"gate", "outcome"})

	// IndexedKeys tracks how many environment credentials are indexed
	IndexedKeys = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keyguard_indexed_keys",
		Help: "The number of credential-suggesting environment variables indexed",
	})

	// ComplianceRate tracks the latest audit compliance rate percentage
	ComplianceRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keyguard_compliance_rate",
		Help: "The credential compliance rate from the most recent audit, in percent",
	})
)
