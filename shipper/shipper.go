package shipper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"log/slog"

	"github.com/carelink/keyguard/audit"
	"github.com/carelink/keyguard/keystore"
)

// Shipper POSTs audit reports to an external sink (dashboard ingest, log
// shipper endpoint). Large detail lists are split into chunks so a single
// oversized report cannot blow the sink's request size limit.
type Shipper struct {
	url         string
	client      *http.Client
	maxRetries  int
	baseBackoff time.Duration
	chunkSize   int
	logger      *slog.Logger
}

// Option is a functional option for configuring a Shipper
type Option func(*Shipper)

// WithHTTPClient sets the HTTP client used for report delivery
func WithHTTPClient(client *http.Client) Option {
	return func(s *Shipper) {
		s.client = client
	}
}

// WithMaxRetries sets how many times a failed POST is retried
func WithMaxRetries(n int) Option {
	return func(s *Shipper) {
		if n >= 0 {
			s.maxRetries = n
		}
	}
}

// WithBaseBackoff sets the base delay for retry backoff
func WithBaseBackoff(d time.Duration) Option {
	return func(s *Shipper) {
		if d > 0 {
			s.baseBackoff = d
		}
	}
}

// WithChunkSize sets how many audit detail records travel per POST.
// Zero disables chunking.
func WithChunkSize(n int) Option {
	return func(s *Shipper) {
		s.chunkSize = n
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Shipper) {
		s.logger = logger
	}
}

// New creates a Shipper targeting the given URL
func New(url string, opts ...Option) *Shipper {
	s := &Shipper{
		url:         url,
		client:      &http.Client{Timeout: 10 * time.Second},
		maxRetries:  3,
		baseBackoff: time.Second,
		chunkSize:   100,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// chunkedReport is the wire shape of one shipped chunk. Chunk numbering is
// 1-based; an unchunked report ships as 1 of 1.
type chunkedReport struct {
	audit.Report
	Chunk  int `json:"chunk"`
	Chunks int `json:"chunks"`
}

// Ship delivers a report, chunking details and retrying failed POSTs with
// exponential backoff and jitter. Returns the first error that exhausts its
// retries; earlier chunks already delivered stay delivered.
func (s *Shipper) Ship(ctx context.Context, report audit.Report) error {
	chunks := chunkDetails(report.Details, s.chunkSize)

	for i, details := range chunks {
		payload := chunkedReport{
			Report: report,
			Chunk:  i + 1,
			Chunks: len(chunks),
		}
		payload.Details = details

		if err := s.post(ctx, payload); err != nil {
			return fmt.Errorf("failed to ship report chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}

	return nil
}

func (s *Shipper) post(ctx context.Context, payload chunkedReport) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := backoffWithJitter(s.baseBackoff, attempt)
			s.logger.Warn("retrying report delivery",
				"attempt", attempt,
				"backoff", backoff,
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to build report request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("report sink returned status %d", resp.StatusCode)
	}

	return lastErr
}

// chunkDetails splits detail records into slices of at most size entries.
// A nil or empty detail list still yields one empty chunk so the summary
// fields are always delivered.
func chunkDetails(details []keystore.AuditRecord, size int) [][]keystore.AuditRecord {
	if size <= 0 || len(details) <= size {
		return [][]keystore.AuditRecord{details}
	}

	var chunks [][]keystore.AuditRecord
	for start := 0; start < len(details); start += size {
		end := start + size
		if end > len(details) {
			end = len(details)
		}
		chunks = append(chunks, details[start:end])
	}
	return chunks
}

// backoffWithJitter calculates backoff duration with jitter for retries
func backoffWithJitter(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return base
	}

	multiplier := uint(1) << uint(attempt-1)
	backoff := time.Duration(float64(base) * float64(multiplier))
	jitter := time.Duration(rand.Int63n(int64(backoff/2) + 1))
	return backoff + jitter
}
