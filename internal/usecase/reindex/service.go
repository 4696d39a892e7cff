// Package reindex rebuilds the search projections from the record store.
package reindex

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/docvault/internal/metrics"
)

// DefaultConcurrency is the number of documents processed at once.
const DefaultConcurrency = 8

// Report summarizes one sweep.
type Report struct {
	Seen      int `json:"seen"`
	Indexed   int `json:"indexed"`
	Unindexed int `json:"unindexed"`
	Missing   int `json:"missing"`
	Failed    int `json:"failed"`
}

// Service runs re-index sweeps.
type Service struct {
	records     Records
	keyword     KeywordIndex
	vector      VectorIndex
	concurrency int
	logger      *zap.Logger
}

// New creates a sweep service. vector may be nil; concurrency <= 0 uses DefaultConcurrency.
func New(records Records, keyword KeywordIndex, vector VectorIndex, concurrency int, logger *zap.Logger) *Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Service{
		records:     records,
		keyword:     keyword,
		vector:      vector,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run walks every enumerated document once. Soft-deleted documents are removed
// from the projections, live ones are (re)indexed. Per-document failures are
// counted and the sweep continues; only enumeration and schema errors abort it.
func (s *Service) Run(ctx context.Context) (Report, error) {
	ids, err := s.records.List(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("load enumeration: %w", err)
	}
	ids = dedupe(ids)

	if _, err := s.keyword.EnsureSchema(ctx); err != nil {
		return Report{}, fmt.Errorf("ensure keyword schema: %w", err)
	}

	var indexed, unindexed, missing, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			o := s.sweepOne(gctx, id)
			metrics.ReindexDocumentsTotal.WithLabelValues(o.String()).Inc()
			switch o {
			case outcomeIndexed:
				indexed.Add(1)
			case outcomeUnindexed:
				unindexed.Add(1)
			case outcomeMissing:
				missing.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, fmt.Errorf("sweep: %w", err)
	}

	report := Report{
		Seen:      len(ids),
		Indexed:   int(indexed.Load()),
		Unindexed: int(unindexed.Load()),
		Missing:   int(missing.Load()),
		Failed:    int(failed.Load()),
	}
	s.logger.Info("Re-index sweep finished",
		zap.Int("seen", report.Seen),
		zap.Int("indexed", report.Indexed),
		zap.Int("unindexed", report.Unindexed),
		zap.Int("missing", report.Missing),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

type outcome int

const (
	outcomeFailed outcome = iota
	outcomeIndexed
	outcomeUnindexed
	outcomeMissing
)

func (o outcome) String() string {
	switch o {
	case outcomeIndexed:
		return "indexed"
	case outcomeUnindexed:
		return "unindexed"
	case outcomeMissing:
		return "missing"
	default:
		return "failed"
	}
}

func (s *Service) sweepOne(ctx context.Context, id string) outcome {
	doc, found, err := s.records.Get(ctx, id)
	if err != nil {
		s.logger.Warn("Re-index read failed", zap.String("id", id), zap.Error(err))
		return outcomeFailed
	}
	if !found {
		return outcomeMissing
	}

	if doc.Deleted() {
		if _, err := s.keyword.Delete(ctx, id); err != nil {
			s.logger.Warn("Re-index unindex failed", zap.String("id", id), zap.Error(err))
			return outcomeFailed
		}
		if s.vector != nil {
			if err := s.vector.Delete(ctx, id); err != nil {
				s.logger.Warn("Re-index vector delete failed", zap.String("id", id), zap.Error(err))
			}
		}
		return outcomeUnindexed
	}

	if err := s.keyword.Index(ctx, &doc); err != nil {
		s.logger.Warn("Re-index keyword write failed", zap.String("id", id), zap.Error(err))
		return outcomeFailed
	}
	if s.vector != nil {
		if err := s.vector.Upsert(ctx, &doc); err != nil {
			s.logger.Warn("Re-index vector write failed", zap.String("id", id), zap.Error(err))
		}
	}
	return outcomeIndexed
}

// dedupe drops repeated ids, keeping first-occurrence order.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
