package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docvault/internal/config"
	"github.com/kailas-cloud/docvault/internal/db"
	"github.com/kailas-cloud/docvault/internal/db/ledger"
	dbRedis "github.com/kailas-cloud/docvault/internal/db/redis"
	"github.com/kailas-cloud/docvault/internal/domain"
	domdoc "github.com/kailas-cloud/docvault/internal/domain/document"
	"github.com/kailas-cloud/docvault/internal/domain/search/result"
	"github.com/kailas-cloud/docvault/internal/metrics"
	documentrepo "github.com/kailas-cloud/docvault/internal/repository/document"
	"github.com/kailas-cloud/docvault/internal/repository/embcache"
	"github.com/kailas-cloud/docvault/internal/repository/keyword"
	"github.com/kailas-cloud/docvault/internal/repository/vector"
	openaiEmb "github.com/kailas-cloud/docvault/internal/transport/openai"
	"github.com/kailas-cloud/docvault/internal/transport/static"
	documentuc "github.com/kailas-cloud/docvault/internal/usecase/document"
	embeddinguc "github.com/kailas-cloud/docvault/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/docvault/internal/usecase/health"
	reindexuc "github.com/kailas-cloud/docvault/internal/usecase/reindex"
	searchuc "github.com/kailas-cloud/docvault/internal/usecase/search"
)

// keywordBackend is what the composition root needs from either full-text driver.
type keywordBackend interface {
	EnsureSchema(ctx context.Context) (bool, error)
	Index(ctx context.Context, doc *domdoc.Document) error
	Delete(ctx context.Context, id string) (bool, error)
	Search(ctx context.Context, query string, size, offset int) (result.Page, error)
	Ping(ctx context.Context) error
}

// app is the wired object graph shared by the subcommands.
type app struct {
	cfg    config.Config
	logger *zap.Logger

	redis   *dbRedis.Store // nil unless a redis driver is selected
	records db.RecordStore
	ledger  *ledger.Store // non-nil when records is the ledger
	keyword keywordBackend
	vector  *vector.Backend // nil when vector search is disabled
	hnsw    *vector.HNSWCollection // non-nil for the hnsw vector driver

	embedding *lazyEmbedding // nil when vector search is disabled

	documents *documentuc.Service
	search    *searchuc.Service
	health    *healthuc.Service
	reindex   *reindexuc.Service

	closers []func()
}

// newApp connects the configured backends and builds the services.
// Call Close when done, also after an error.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}

	if cfg.UsesRedis() {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Redis.Addrs,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return a, fmt.Errorf("create redis store: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		timeout := time.Duration(cfg.Redis.ReadinessTimeout) * time.Second
		if err := store.WaitForReady(ctx, timeout); err != nil {
			return a, fmt.Errorf("redis not ready: %w", err)
		}
		a.redis = store
		logger.Info("Connected to redis", zap.Strings("addrs", cfg.Redis.Addrs))
	}

	if err := a.openRecords(ctx); err != nil {
		return a, err
	}
	if err := a.openKeyword(ctx); err != nil {
		return a, err
	}

	var checker healthuc.EmbeddingChecker
	if cfg.Vector.Enabled {
		collection, err := a.buildCollection()
		if err != nil {
			return a, err
		}
		a.embedding = &lazyEmbedding{build: a.buildEmbedder}
		checker = a.embedding
		a.vector = vector.New(a.embedding.Load, collection, cfg.Vector.Dimensions, logger)
	}

	repo := documentrepo.New(a.records, cfg.Storage.KeyPrefix,
		documentrepo.WithRetryPolicy(retryPolicy(cfg.RecordStore.CASAttempts)),
		documentrepo.WithRetryObserver(func(target string) {
			metrics.IndexCASRetriesTotal.WithLabelValues(target).Inc()
		}),
	)

	// Typed nil pointers must not leak into the interface parameters below.
	var (
		docVector     documentuc.VectorIndex
		searchVector  searchuc.VectorSearcher
		reindexVector reindexuc.VectorIndex
	)
	if a.vector != nil {
		docVector, searchVector, reindexVector = a.vector, a.vector, a.vector
	}

	a.search = searchuc.New(a.keyword, searchVector, logger)
	a.documents = documentuc.New(repo, a.keyword, docVector, a.search, logger)
	a.health = healthuc.New(a.records, a.keyword, checker, healthuc.WithLogger(logger.Named("health")))
	a.reindex = reindexuc.New(repo, a.keyword, reindexVector, cfg.Reindex.Concurrency, logger)

	logger.Info("Components wired",
		zap.String("record_store", cfg.RecordStore.Driver),
		zap.String("keyword", cfg.Keyword.Driver),
		zap.Bool("vector_enabled", cfg.Vector.Enabled),
		zap.String("vector", cfg.Vector.Driver),
		zap.String("embedding_provider", cfg.Embedding.Provider),
	)
	return a, nil
}

func (a *app) openRecords(ctx context.Context) error {
	switch a.cfg.RecordStore.Driver {
	case config.DriverLedger:
		l, err := ledger.Open(ctx, ledger.Config{Path: a.cfg.RecordStore.LedgerPath})
		if err != nil {
			return fmt.Errorf("open ledger: %w", err)
		}
		a.closers = append(a.closers, l.Close)
		a.ledger = l
		a.records = l
	case config.DriverRedis:
		a.records = a.redis
	default:
		return fmt.Errorf("unknown record store driver %q", a.cfg.RecordStore.Driver)
	}
	return nil
}

func (a *app) openKeyword(ctx context.Context) error {
	switch a.cfg.Keyword.Driver {
	case config.DriverBleve:
		b, err := keyword.OpenBleve(a.cfg.Keyword.BlevePath, a.logger)
		if err != nil {
			return fmt.Errorf("open bleve index: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := b.Close(); err != nil {
				a.logger.Warn("Bleve close failed", zap.Error(err))
			}
		})
		a.keyword = b
	case config.DriverRedis:
		a.keyword = keyword.NewRedis(a.redis, a.cfg.Keyword.IndexName, a.cfg.Storage.KeyPrefix, a.logger)
	default:
		return fmt.Errorf("unknown keyword driver %q", a.cfg.Keyword.Driver)
	}

	created, err := a.keyword.EnsureSchema(ctx)
	if err != nil {
		return fmt.Errorf("ensure keyword schema: %w", err)
	}
	if created {
		a.logger.Info("Keyword index created", zap.String("driver", a.cfg.Keyword.Driver))
	}
	return nil
}

// buildEmbedder assembles the decorator chain:
// provider -> instrumented -> pool -> redis cache -> LRU.
// It returns the bare provider too, for health checks.
func (a *app) buildEmbedder() (domain.Embedder, domain.Embedder, error) {
	cfg := a.cfg.Embedding

	var (
		base  domain.Embedder
		model string
	)
	switch cfg.Provider {
	case config.ProviderOpenAI:
		base = openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Provider:   cfg.Provider,
			Logger:     a.logger,
		})
		model = cfg.Model
	case config.ProviderStatic:
		s := static.NewEmbedder(cfg.Dimensions)
		base = s
		model = fmt.Sprintf("static-%d", s.Dimensions())
	default:
		return nil, nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	var emb domain.Embedder = embeddinguc.NewInstrumentedEmbedder(base, embeddinguc.InstrumentedConfig{
		Provider:   cfg.Provider,
		Model:      model,
		Dimensions: cfg.Dimensions,
	}, a.logger)
	emb = embeddinguc.NewPool(emb, embeddinguc.PoolConfig{
		Workers:       cfg.Workers,
		RatePerSecond: cfg.RatePerSecond,
	})
	if a.redis != nil {
		emb = embcache.NewRedis(emb, a.redis, embcache.RedisConfig{
			KeyPrefix: a.cfg.Storage.KeyPrefix,
			Model:     model,
			TTL:       cfg.CacheTTL(),
		}, metrics.EmbeddingCacheTotal, a.logger)
	}
	lru, err := embcache.NewLRU(emb, model, cfg.LRUSize, metrics.EmbeddingCacheTotal)
	if err != nil {
		return nil, nil, fmt.Errorf("create embedding lru: %w", err)
	}

	a.logger.Info("Embedder created",
		zap.String("provider", cfg.Provider),
		zap.String("model", model),
		zap.Int("workers", cfg.Workers),
		zap.Bool("redis_cache", a.redis != nil),
	)
	return base, lru, nil
}

func (a *app) buildCollection() (vector.Collection, error) {
	hnswCfg := vector.HNSWConfig{
		M:           a.cfg.Vector.HNSWM,
		EFConstruct: a.cfg.Vector.HNSWEFConstruct,
		Path:        a.cfg.Vector.HNSWPath,
	}
	if a.cfg.Vector.Driver == config.DriverRedis {
		return vector.NewRedisCollection(a.redis, a.cfg.Vector.IndexName, a.cfg.Storage.KeyPrefix, hnswCfg), nil
	}

	c, err := vector.OpenHNSWCollection(hnswCfg)
	if err != nil {
		return nil, fmt.Errorf("open vector collection: %w", err)
	}
	a.hnsw = c
	a.closers = append(a.closers, func() {
		if err := c.Save(); err != nil {
			a.logger.Error("Vector snapshot failed", zap.Error(err))
		}
	})
	if c.Restored() {
		st := c.Stats()
		a.logger.Info("Vector snapshot restored", zap.String("path", hnswCfg.Path), zap.Int("points", st.Live))
	}
	return c, nil
}

// needsVectorRebuild reports whether the in-process vector graph started
// without a snapshot and must be filled from the record store.
func (a *app) needsVectorRebuild() bool {
	return a.hnsw != nil && !a.hnsw.Restored()
}

// rebuildVectors runs the re-index sweep to repopulate an empty in-process graph.
func (a *app) rebuildVectors(ctx context.Context) {
	start := time.Now()
	report, err := a.reindex.Run(ctx)
	if err != nil {
		a.logger.Error("Vector rebuild failed", zap.Error(err))
		return
	}
	a.logger.Info("Vector rebuild finished",
		zap.Int("seen", report.Seen),
		zap.Int("indexed", report.Indexed),
		zap.Int("failed", report.Failed),
		zap.Duration("took", time.Since(start)),
	)
}

// Close releases backends in reverse order of opening.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}

func retryPolicy(attempts int) documentrepo.RetryPolicy {
	p := documentrepo.DefaultRetryPolicy()
	if attempts > 0 {
		p.MaxAttempts = attempts
	}
	return p
}

// lazyEmbedding builds the embedder chain on first use. A failed build is
// retried on the next call.
type lazyEmbedding struct {
	build func() (base, chain domain.Embedder, err error)

	mu    sync.Mutex
	base  domain.Embedder
	chain domain.Embedder
}

func (l *lazyEmbedding) get() (domain.Embedder, domain.Embedder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.chain != nil {
		return l.base, l.chain, nil
	}
	base, chain, err := l.build()
	if err != nil {
		return nil, nil, err
	}
	l.base, l.chain = base, chain
	return base, chain, nil
}

// Load is the vector backend's embedder loader.
func (l *lazyEmbedding) Load(context.Context) (domain.Embedder, error) {
	_, chain, err := l.get()
	return chain, err
}

// Loaded reports whether the chain has been built.
func (l *lazyEmbedding) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chain != nil
}

// HealthCheck checks the bare provider, building the chain if needed.
func (l *lazyEmbedding) HealthCheck(ctx context.Context) error {
	base, _, err := l.get()
	if err != nil {
		return fmt.Errorf("embedding health check: %w", err)
	}
	hc, ok := base.(domain.HealthChecker)
	if !ok {
		return nil
	}
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding health check: %w", err)
	}
	return nil
}
