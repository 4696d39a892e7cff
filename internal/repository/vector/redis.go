package vector

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/docvault/internal/db"
	"github.com/kailas-cloud/docvault/internal/domain"
)

// redisStore is the consumer interface for the RediSearch collection (ISP).
type redisStore interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	Remove(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexVectorDim(ctx context.Context, name, attribute string) (int, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

const (
	fieldID      = "id"
	fieldPayload = "payload"
	fieldVector  = "vector"
)

// HNSWConfig holds HNSW graph parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
	// Path is where the in-process collection keeps its snapshot; empty keeps it in memory.
	Path string
}

// RedisCollection stores points as hashes under <keyPrefix>vec:<id> indexed
// by an HNSW cosine vector field.
type RedisCollection struct {
	store  redisStore
	index  string
	prefix string
	hnsw   HNSWConfig
}

// NewRedisCollection creates a RediSearch-backed collection.
func NewRedisCollection(s redisStore, indexName, keyPrefix string, hnsw HNSWConfig) *RedisCollection {
	if hnsw.M <= 0 {
		hnsw.M = 16
	}
	if hnsw.EFConstruct <= 0 {
		hnsw.EFConstruct = 200
	}
	return &RedisCollection{store: s, index: indexName, prefix: keyPrefix + "vec:", hnsw: hnsw}
}

// Ensure creates the vector index. An existing index is accepted when its
// vector field has width dim; any other width is a schema conflict.
func (c *RedisCollection) Ensure(ctx context.Context, dim int) error {
	def, err := db.NewIndex(c.index).
		Prefix(c.prefix).
		Tag(fieldID, "", "").
		VectorHNSW(fieldVector, dim, db.DistanceCosine, c.hnsw.M, c.hnsw.EFConstruct).
		Build()
	if err != nil {
		return fmt.Errorf("build vector index: %w", err)
	}

	err = c.store.CreateIndex(ctx, def)
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}

	existing, err := c.store.IndexVectorDim(ctx, c.index, fieldVector)
	if err != nil {
		return fmt.Errorf("inspect index %s: %w: %w", c.index, domain.ErrBackendUnavailable, err)
	}
	if existing != dim {
		return fmt.Errorf("index %s has vector dimension %d, requested %d: %w",
			c.index, existing, dim, domain.ErrSchemaConflict)
	}
	return nil
}

// Upsert overwrites the point hash for id.
func (c *RedisCollection) Upsert(ctx context.Context, id string, vec []float32, payload []byte) error {
	fields := map[string]string{
		fieldID:      id,
		fieldPayload: string(payload),
		fieldVector:  string(db.EncodeVector(vec)),
	}
	if err := c.store.HSet(ctx, c.prefix+id, fields); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Delete removes the point hash for id.
func (c *RedisCollection) Delete(ctx context.Context, id string) error {
	if _, err := c.store.Remove(ctx, c.prefix+id); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Query runs a KNN search. Score is 1 - cosine distance.
func (c *RedisCollection) Query(ctx context.Context, vec []float32, limit int) ([]Hit, error) {
	if limit <= 0 {
		return nil, nil
	}
	sr, err := c.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    c.index,
		Vector:       vec,
		K:            limit,
		ReturnFields: []string{fieldID, fieldPayload},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}

	hits := make([]Hit, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		id := e.Fields[fieldID]
		if id == "" && len(e.Key) > len(c.prefix) {
			id = e.Key[len(c.prefix):]
		}
		hits = append(hits, Hit{ID: id, Score: e.Score, Payload: []byte(e.Fields[fieldPayload])})
	}
	return hits, nil
}
