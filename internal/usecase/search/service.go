package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docvault/internal/domain"
	"github.com/kailas-cloud/docvault/internal/domain/search/result"
	"github.com/kailas-cloud/docvault/internal/metrics"
)

const (
	// DefaultSize is the page size used when the caller passes none.
	DefaultSize = 10
	// MaxSize caps the page size.
	MaxSize = 100
)

// Service is the hybrid search orchestrator.
type Service struct {
	keyword KeywordSearcher
	vector  VectorSearcher
	logger  *zap.Logger
}

// New creates the orchestrator. A nil vector searcher disables the vector leg.
func New(keyword KeywordSearcher, vector VectorSearcher, logger *zap.Logger) *Service {
	return &Service{keyword: keyword, vector: vector, logger: logger}
}

// VectorEnabled reports whether the vector leg runs.
func (s *Service) VectorEnabled() bool { return s.vector != nil }

type vectorOutcome struct {
	hits []result.Result
	err  error
}

// Search fans the query out to both legs and merges the results.
// Vector results come first, then keyword results not already present; the
// merged list is cut to size. Total is the largest of the keyword total, the
// vector hit count, and the merged count. Took is the keyword leg latency.
// Any vector failure, a panic included, degrades to a keyword-only result.
func (s *Service) Search(ctx context.Context, query string, size, offset int) (result.Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return result.Page{}, fmt.Errorf("%w: query is empty", domain.ErrInvalidQuery)
	}
	if offset < 0 {
		return result.Page{}, fmt.Errorf("%w: offset must be non-negative", domain.ErrInvalidQuery)
	}
	size = clampSize(size)

	var vecCh chan vectorOutcome
	if s.vector != nil {
		vecCh = make(chan vectorOutcome, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					vecCh <- vectorOutcome{err: fmt.Errorf("vector leg panicked: %v", r)}
				}
			}()
			hits, err := s.searchVector(ctx, query, size)
			vecCh <- vectorOutcome{hits: hits, err: err}
		}()
	}

	start := time.Now()
	page, err := s.keyword.Search(ctx, query, size, offset)
	observeLeg("keyword", start, err)
	if err != nil {
		return result.Page{}, fmt.Errorf("keyword search: %w", err)
	}

	var vecHits []result.Result
	if vecCh != nil {
		vec := <-vecCh
		if vec.err != nil {
			metrics.SearchVectorSkippedTotal.WithLabelValues("leg_error").Inc()
			s.logger.Warn("Vector search failed, returning keyword results",
				zap.String("query", query), zap.Error(vec.err))
		} else {
			vecHits = vec.hits
		}
	}

	merged := Merge(vecHits, page.Hits, size)
	return result.Page{
		Total: max(page.Total, len(vecHits), len(merged)),
		Hits:  merged,
		Took:  page.Took,
	}, nil
}

// searchVector runs the vector leg and decodes its hits, skipping malformed ones.
func (s *Service) searchVector(ctx context.Context, query string, limit int) ([]result.Result, error) {
	start := time.Now()
	raw, err := s.vector.Search(ctx, query, limit)
	observeLeg("vector", start, err)
	if err != nil {
		return nil, err
	}

	hits := make([]result.Result, 0, len(raw))
	for i := range raw {
		r, err := raw[i].Decode()
		if err != nil {
			reason := "malformed"
			if !errors.Is(err, domain.ErrMalformedPayload) {
				reason = "decode"
			}
			metrics.SearchVectorSkippedTotal.WithLabelValues(reason).Inc()
			s.logger.Warn("Skipping vector hit", zap.String("id", raw[i].ID), zap.Error(err))
			continue
		}
		hits = append(hits, r)
	}
	return hits, nil
}

// Merge places first before second, keeps the first occurrence of each id, and truncates to size.
func Merge(first, second []result.Result, size int) []result.Result {
	out := make([]result.Result, 0, min(size, len(first)+len(second)))
	seen := make(map[string]struct{}, len(first)+len(second))
	for _, list := range [][]result.Result{first, second} {
		for _, r := range list {
			if len(out) == size {
				return out
			}
			if _, dup := seen[r.ID()]; dup {
				continue
			}
			seen[r.ID()] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

func clampSize(size int) int {
	if size <= 0 {
		return DefaultSize
	}
	return min(size, MaxSize)
}

func observeLeg(leg string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SearchLegDuration.WithLabelValues(leg, status).Observe(time.Since(start).Seconds())
}
