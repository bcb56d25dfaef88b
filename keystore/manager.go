package keystore

import (
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/carelink/keyguard/keys"
	"github.com/carelink/keyguard/metrics"
)

// DefaultSuffixes are the environment variable name fragments that mark a
// variable as credential-suggesting. Matching is case-insensitive.
var DefaultSuffixes = []string{"_KEY", "_SECRET", "_TOKEN"}

// Compliance marks an audit record as passing or failing validation
type Compliance string

const (
	CompliancePass Compliance = "PASS"
	ComplianceFail Compliance = "FAIL"
)

// AuditRecord is one row of the environment credential audit
type AuditRecord struct {
	KeyName     string       `json:"key_name"`
	KeyType     keys.KeyType `json:"key_type"`
	ClientSafe  bool         `json:"client_safe"`
	MaskedValue string       `json:"masked_value"`
	Compliance  Compliance   `json:"compliance"`
}

// Manager indexes every credential-suggesting environment variable once at
// construction and releases raw values only for client-safe classifications.
//
// Construct one Manager at process start and share it; see New. The index is
// written at construction and by ValidateAndStore, read everywhere else, so
// all access goes through the RWMutex.
type Manager struct {
	validator *keys.Validator
	suffixes  []string
	logger    *slog.Logger
	metrics   metrics.MetricsRecorder

	mu         sync.RWMutex
	index      map[string]keys.Verdict // env var name -> verdict
	rawValues  map[string]string       // raw values for indexed names only
	frontend   map[string]string       // client-safe stored keys
	serverOnly map[string]bool         // names stored but withheld from the frontend
}

// Option is a functional option for configuring a Manager
type Option func(*Manager)

// WithValidator sets the validator used for the scan and for stores
func WithValidator(v *keys.Validator) Option {
	return func(m *Manager) {
		m.validator = v
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(rec metrics.MetricsRecorder) Option {
	return func(m *Manager) {
		m.metrics = rec
	}
}

// WithSuffixes overrides the credential-suggesting name fragments
func WithSuffixes(suffixes []string) Option {
	return func(m *Manager) {
		if len(suffixes) > 0 {
			m.suffixes = suffixes
		}
	}
}

// New creates a Manager and scans the given environment exactly once.
// Callers pass os.Environ(); tests pass fixtures. Later environment mutation
// is invisible to the Manager; construct a new one to pick it up.
func New(environ []string, opts ...Option) *Manager {
	m := &Manager{
		suffixes:   DefaultSuffixes,
		logger:     slog.Default(),
		metrics:    metrics.NewNoopMetrics(),
		index:      make(map[string]keys.Verdict),
		rawValues:  make(map[string]string),
		frontend:   make(map[string]string),
		serverOnly: make(map[string]bool),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.validator == nil {
		m.validator = keys.NewValidator()
	}

	m.scan(environ)

	return m
}

// scan runs once from New, before the Manager is shared, so it writes the
// index without taking the lock.
func (m *Manager) scan(environ []string) {
	for _, entry := range environ {
		name, value, found := strings.Cut(entry, "=")
		if !found || !m.isCredentialName(name) {
			continue
		}

		verdict := m.validator.Validate(value, name)
		m.index[name] = verdict
		m.rawValues[name] = value
		m.metrics.RecordClassification(verdict.KeyType.String())

		m.logger.Debug("indexed environment credential",
			"name", name,
			"key_type", verdict.KeyType.String(),
			"client_safe", verdict.ClientSafe,
			"masked_value", verdict.MaskedValue,
		)
	}

	m.metrics.SetIndexedKeys(len(m.index))
}

func (m *Manager) isCredentialName(name string) bool {
	upper := strings.ToUpper(name)
	for _, suffix := range m.suffixes {
		if strings.Contains(upper, suffix) {
			return true
		}
	}
	return false
}

// GetClientSafeKey returns the raw value of an indexed credential, but only
// when its stored verdict marked it client-safe. Names absent from the index
// never release a value: an unmatched name means "not a credential", not
// "safe".
func (m *Manager) GetClientSafeKey(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	verdict, ok := m.index[name]
	if !ok {
		m.metrics.RecordKeyLookup("unknown")
		return "", false
	}

	if !verdict.ClientSafe {
		m.metrics.RecordKeyLookup("blocked")
		m.logger.Warn("refused to release non-client-safe key",
			"name", name,
			"key_type", verdict.KeyType.String(),
			"masked_value", verdict.MaskedValue,
		)
		return "", false
	}

	m.metrics.RecordKeyLookup("released")
	return m.rawValues[name], true
}

// ValidateAndStore validates a credential and records it. Invalid credentials
// are rejected and nothing is stored. Valid client-safe values land in the
// frontend store; valid server-grade values are recorded as server-only for
// the audit trail. Both valid outcomes return true; the server-only flag is
// bookkeeping, not an access gate at store time.
func (m *Manager) ValidateAndStore(name, value string) bool {
	verdict := m.validator.Validate(value, name)

	if !verdict.Valid {
		m.metrics.RecordValidation("rejected")
		m.logger.Error("rejected credential store",
			"name", name,
			"reason", verdict.Reason,
			"masked_value", verdict.MaskedValue,
		)
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.index[name] = verdict
	m.rawValues[name] = value
	m.metrics.RecordValidation("valid")
	m.metrics.RecordClassification(verdict.KeyType.String())
	m.metrics.SetIndexedKeys(len(m.index))

	if verdict.ClientSafe {
		m.frontend[name] = value
		m.logger.Info("stored client-safe key",
			"name", name,
			"key_type", verdict.KeyType.String(),
		)
	} else {
		m.serverOnly[name] = true
		m.logger.Info("stored server-only key",
			"name", name,
			"key_type", verdict.KeyType.String(),
		)
	}

	return true
}

// SafeKeysForFrontend returns the stored client-safe keys. Every value is
// re-checked against the classifier instead of trusting the flag recorded at
// store time; with the index immutable between store and read the re-check
// can't disagree, but it keeps a stale or tampered flag from ever widening
// exposure.
func (m *Manager) SafeKeysForFrontend() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.frontend))
	for name, value := range m.frontend {
		if keys.Classify(value).ClientSafe() {
			out[name] = value
		}
	}
	return out
}

// AuditKeyUsage projects the whole environment index into audit records,
// sorted by key name. Compliance is PASS iff the stored verdict was valid.
func (m *Manager) AuditKeyUsage() []AuditRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]AuditRecord, 0, len(m.index))
	for name, verdict := range m.index {
		compliance := ComplianceFail
		if verdict.Valid {
			compliance = CompliancePass
		}
		records = append(records, AuditRecord{
			KeyName:     name,
			KeyType:     verdict.KeyType,
			ClientSafe:  verdict.ClientSafe,
			MaskedValue: verdict.MaskedValue,
			Compliance:  compliance,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].KeyName < records[j].KeyName
	})

	return records
}

// IndexedKeyCount returns how many environment credentials are indexed
func (m *Manager) IndexedKeyCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.index)
}

// Verdict returns the stored verdict for an indexed name
func (m *Manager) Verdict(name string) (keys.Verdict, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	verdict, ok := m.index[name]
	return verdict, ok
}
