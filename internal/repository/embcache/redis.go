// Package embcache holds the embedding cache decorators: a shared Redis
// layer and an in-process LRU layer.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docvault/internal/db"
	"github.com/kailas-cloud/docvault/internal/domain"
)

// store is the consumer interface for the Redis cache layer (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Redis caches embeddings in Redis under <keyPrefix>emb_cache:<sha256(model, text)>.
// Cache errors are logged and treated as misses.
type Redis struct {
	inner      domain.Embedder
	store      store
	prefix     string
	model      string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// RedisConfig configures the Redis cache layer. TTL 0 keeps entries forever.
type RedisConfig struct {
	KeyPrefix string
	Model     string
	TTL       time.Duration
}

// NewRedis creates the Redis cache decorator.
// cacheTotal has labels "layer" and "result"; nil disables counting.
func NewRedis(
	inner domain.Embedder, s store, cfg RedisConfig,
	cacheTotal *prometheus.CounterVec, logger *zap.Logger,
) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{
		inner:      inner,
		store:      s,
		prefix:     cfg.KeyPrefix + "emb_cache:",
		model:      cfg.Model,
		ttl:        cfg.TTL,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// A hit reports zero tokens.
func (c *Redis) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.prefix + cacheKey(c.model, text)

	if vec, ok := c.get(ctx, key); ok {
		count(c.cacheTotal, "redis", "hit")
		return domain.EmbeddingResult{Embedding: vec}, nil
	}
	count(c.cacheTotal, "redis", "miss")

	res, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.put(ctx, key, res.Embedding)
	return res, nil
}

func (c *Redis) get(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to read cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := db.DecodeVector(data)
	if err != nil {
		c.logger.Warn("Discarding corrupt cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return vec, true
}

func (c *Redis) put(ctx context.Context, key string, vec []float32) {
	data := db.EncodeVector(vec)
	var err error
	if c.ttl > 0 {
		err = c.store.SetWithTTL(ctx, key, data, c.ttl)
	} else {
		err = c.store.Set(ctx, key, data)
	}
	if err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

// cacheKey hashes model and text; the NUL separator keeps the pair unambiguous.
func cacheKey(model, text string) string {
	h := sha256.Sum256([]byte(model + "\x00" + text))
	return hex.EncodeToString(h[:])
}

func count(c *prometheus.CounterVec, layer, result string) {
	if c != nil {
		c.WithLabelValues(layer, result).Inc()
	}
}
