package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds each component probe.
const DefaultCheckTimeout = 2 * time.Second

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates that only the optional vector path is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates that a component every request depends on is failing.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Component names in a report.
const (
	ComponentRecordStore = "record_store"
	ComponentKeyword     = "keyword"
	ComponentEmbedding   = "embedding"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Option configures a Service.
type Option func(*Service)

// WithCheckTimeout bounds each component probe. Non-positive values keep the default.
func WithCheckTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger logs failing probes at warn level.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service coordinates health checks.
type Service struct {
	records   Pinger
	keyword   Pinger
	embedding EmbeddingChecker
	timeout   time.Duration
	logger    *zap.Logger
}

// New creates a Service. embedding can be nil when vector search is disabled.
func New(records, keyword Pinger, embedding EmbeddingChecker, opts ...Option) *Service {
	s := &Service{
		records:   records,
		keyword:   keyword,
		embedding: embedding,
		timeout:   DefaultCheckTimeout,
		logger:    zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Check probes every component concurrently, each under its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	probes := map[string]func(context.Context) error{
		ComponentRecordStore: s.records.Ping,
		ComponentKeyword:     s.keyword.Ping,
	}
	if s.embedding != nil {
		probes[ComponentEmbedding] = s.embedding.HealthCheck
	}

	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(probes))
		g      errgroup.Group
	)
	for name, probe := range probes {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			err := probe(pctx)
			if err != nil {
				s.logger.Warn("Health probe failed", zap.String("component", name), zap.Error(err))
			}
			mu.Lock()
			checks[name] = result(err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return Report{Status: aggregate(checks), Checks: checks}
}

// aggregate: a failing record store or keyword index is fatal; a failing
// embedding provider only degrades.
func aggregate(checks map[string]CheckResult) Status {
	if checks[ComponentRecordStore] == CheckError || checks[ComponentKeyword] == CheckError {
		return Unhealthy
	}
	if checks[ComponentEmbedding] == CheckError {
		return Degraded
	}
	return Healthy
}

func result(err error) CheckResult {
	if err != nil {
		return CheckError
	}
	return CheckOK
}
