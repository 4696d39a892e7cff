package embedding

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/docvault/internal/domain"
	"github.com/kailas-cloud/docvault/internal/metrics"
)

// DefaultPoolWorkers bounds concurrent embedding calls when unset.
const DefaultPoolWorkers = 4

// PoolConfig configures the dispatch pool.
type PoolConfig struct {
	// Workers is the number of embedding calls allowed in flight.
	Workers int
	// RatePerSecond throttles calls to the inner embedder; 0 disables throttling.
	RatePerSecond float64
	// Burst is the limiter burst; defaults to Workers.
	Burst int
}

// Pool bounds concurrent embedding work and throttles calls to the provider.
// Waiting callers honor context cancellation.
type Pool struct {
	inner   domain.Embedder
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	workers int
}

// NewPool wraps inner with a bounded dispatch pool.
func NewPool(inner domain.Embedder, cfg PoolConfig) *Pool {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultPoolWorkers
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = workers
	}
	return &Pool{
		inner:   inner,
		sem:     semaphore.NewWeighted(int64(workers)),
		limiter: rate.NewLimiter(limit, burst),
		workers: workers,
	}
}

// Workers returns the pool bound.
func (p *Pool) Workers() int { return p.workers }

// Embed waits for a free slot and a limiter token, then calls the inner embedder.
func (p *Pool) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	start := time.Now()
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("acquire embedding slot: %w", err)
	}
	defer p.sem.Release(1)

	if err := p.limiter.Wait(ctx); err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embedding rate limit: %w", err)
	}
	metrics.EmbeddingPoolWaitSeconds.Observe(time.Since(start).Seconds())

	metrics.EmbeddingPoolInFlight.Inc()
	defer metrics.EmbeddingPoolInFlight.Dec()

	return p.inner.Embed(ctx, text)
}
