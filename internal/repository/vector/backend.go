// Package vector implements the vector-similarity search backend: a lazily
// materialized embedder in front of a cosine nearest-neighbour collection.
package vector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docvault/internal/domain"
	"github.com/kailas-cloud/docvault/internal/domain/document"
	"github.com/kailas-cloud/docvault/internal/domain/search/result"
)

// probeText is embedded once to learn the collection dimension when none is configured.
const probeText = "dimension probe"

// Collection is a cosine nearest-neighbour index of points keyed by document id.
type Collection interface {
	// Ensure prepares the collection for vectors of width dim. Safe to call again.
	Ensure(ctx context.Context, dim int) error
	Upsert(ctx context.Context, id string, vec []float32, payload []byte) error
	// Delete removes the point for id; an absent id is not an error.
	Delete(ctx context.Context, id string) error
	// Query returns up to limit points by descending similarity.
	Query(ctx context.Context, vec []float32, limit int) ([]Hit, error)
}

// Hit is one scored point with its raw payload.
type Hit struct {
	ID      string
	Score   float64
	Payload []byte
}

// Decode parses the payload into a search result.
func (h *Hit) Decode() (result.Result, error) {
	var p result.Projection
	if err := json.Unmarshal(h.Payload, &p); err != nil {
		return result.Result{}, fmt.Errorf("point %s: %w: %w", h.ID, domain.ErrMalformedPayload, err)
	}
	if !p.Complete() || p.ID != h.ID {
		return result.Result{}, fmt.Errorf("point %s: %w: incomplete payload", h.ID, domain.ErrMalformedPayload)
	}
	return result.New(p, h.Score, result.SourceVector), nil
}

// EmbedderLoader materializes the embedding function on first use.
type EmbedderLoader func(ctx context.Context) (domain.Embedder, error)

// Backend is the vector search backend. It moves from uninitialized to ready
// on first use; the embedder and the collection are materialized separately,
// each at most once.
type Backend struct {
	load       EmbedderLoader
	collection Collection
	dim        int
	logger     *zap.Logger

	embMu    sync.Mutex
	embReady atomic.Bool
	emb      domain.Embedder

	colMu    sync.Mutex
	colReady atomic.Bool
}

// New creates a vector backend. dim 0 means: take the width of a probe embedding.
func New(load EmbedderLoader, c Collection, dim int, logger *zap.Logger) *Backend {
	return &Backend{load: load, collection: c, dim: dim, logger: logger}
}

// Ready reports whether the collection has been materialized.
func (b *Backend) Ready() bool { return b.colReady.Load() }

// Dimension returns the fixed collection dimension, or 0 before initialization.
func (b *Backend) Dimension() int {
	if !b.colReady.Load() {
		return 0
	}
	return b.dim
}

// Upsert embeds title and content and overwrites the point for doc.
func (b *Backend) Upsert(ctx context.Context, doc *document.Document) error {
	if err := b.ensureCollection(ctx); err != nil {
		return err
	}

	vec, err := b.embed(ctx, doc.EmbeddingText())
	if err != nil {
		return err
	}

	payload, err := json.Marshal(result.ProjectionOf(doc))
	if err != nil {
		return fmt.Errorf("encode payload %s: %w", doc.ID(), err)
	}
	if err := b.collection.Upsert(ctx, doc.ID(), vec, payload); err != nil {
		return fmt.Errorf("upsert point %s: %w", doc.ID(), err)
	}
	return nil
}

// Delete removes the point for id.
func (b *Backend) Delete(ctx context.Context, id string) error {
	if err := b.ensureCollection(ctx); err != nil {
		return err
	}
	if err := b.collection.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete point %s: %w", id, err)
	}
	return nil
}

// Search embeds query and returns up to limit points by descending cosine similarity.
func (b *Backend) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	if err := b.ensureCollection(ctx); err != nil {
		return nil, err
	}

	vec, err := b.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := b.collection.Query(ctx, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	return hits, nil
}

func (b *Backend) embed(ctx context.Context, text string) ([]float32, error) {
	emb, err := b.embedder(ctx)
	if err != nil {
		return nil, err
	}
	res, err := emb.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(res.Embedding) != b.dim {
		return nil, fmt.Errorf("embedding width %d, collection expects %d: %w",
			len(res.Embedding), b.dim, domain.ErrSchemaConflict)
	}
	return res.Embedding, nil
}

// embedder returns the embedding function, loading it on the first call.
func (b *Backend) embedder(ctx context.Context) (domain.Embedder, error) {
	if b.embReady.Load() {
		return b.emb, nil
	}

	b.embMu.Lock()
	defer b.embMu.Unlock()
	if b.embReady.Load() {
		return b.emb, nil
	}

	emb, err := b.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load embedder: %w", err)
	}
	if emb == nil {
		return nil, errors.New("load embedder: loader returned nil")
	}
	b.emb = emb
	b.embReady.Store(true)
	b.logger.Info("Embedder loaded")
	return emb, nil
}

// ensureCollection materializes the collection, fixing its dimension.
func (b *Backend) ensureCollection(ctx context.Context) error {
	if b.colReady.Load() {
		return nil
	}

	b.colMu.Lock()
	defer b.colMu.Unlock()
	if b.colReady.Load() {
		return nil
	}

	dim := b.dim
	if dim <= 0 {
		emb, err := b.embedder(ctx)
		if err != nil {
			return err
		}
		probe, err := emb.Embed(ctx, probeText)
		if err != nil {
			return fmt.Errorf("probe embedding width: %w", err)
		}
		if len(probe.Embedding) == 0 {
			return fmt.Errorf("probe embedding is empty: %w", domain.ErrEmbeddingProviderError)
		}
		dim = len(probe.Embedding)
	}

	if err := b.collection.Ensure(ctx, dim); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	b.dim = dim
	b.colReady.Store(true)
	b.logger.Info("Vector collection ready", zap.Int("dimension", dim))
	return nil
}
