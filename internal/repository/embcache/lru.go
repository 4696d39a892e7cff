package embcache

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/docvault/internal/domain"
)

// DefaultLRUSize is the number of embeddings kept in process by default.
const DefaultLRUSize = 1000

// LRU keeps recent embeddings in process memory in front of the inner embedder.
type LRU struct {
	inner      domain.Embedder
	model      string
	cache      *lru.Cache[string, []float32]
	cacheTotal *prometheus.CounterVec
}

// NewLRU creates the in-process cache decorator. size <= 0 uses DefaultLRUSize.
func NewLRU(inner domain.Embedder, model string, size int, cacheTotal *prometheus.CounterVec) (*LRU, error) {
	if size <= 0 {
		size = DefaultLRUSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &LRU{inner: inner, model: model, cache: cache, cacheTotal: cacheTotal}, nil
}

// Embed returns a cached embedding or calls the inner embedder.
// Callers must not modify the returned slice.
func (c *LRU) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := cacheKey(c.model, text)
	if vec, ok := c.cache.Get(key); ok {
		count(c.cacheTotal, "lru", "hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	count(c.cacheTotal, "lru", "miss")

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	c.cache.Add(key, res.Embedding)
	return res, nil
}

// Len returns the number of cached embeddings.
func (c *LRU) Len() int { return c.cache.Len() }
