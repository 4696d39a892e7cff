package vector

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docvault/internal/db"
	"github.com/kailas-cloud/docvault/internal/domain"
	"github.com/kailas-cloud/docvault/internal/domain/document"
)

// fakeEmbedder maps known texts to fixed vectors; anything else gets fallback.
type fakeEmbedder struct {
	mu       sync.Mutex
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    atomic.Int64
	texts    []string
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return domain.EmbeddingResult{Embedding: v}, nil
	}
	return domain.EmbeddingResult{Embedding: f.fallback}, nil
}

// mockCollection implements Collection for tests.
type mockCollection struct {
	ensureFn func(ctx context.Context, dim int) error
	upsertFn func(ctx context.Context, id string, vec []float32, payload []byte) error
	deleteFn func(ctx context.Context, id string) error
	queryFn  func(ctx context.Context, vec []float32, limit int) ([]Hit, error)

	ensureCalls atomic.Int64
}

func (m *mockCollection) Ensure(ctx context.Context, dim int) error {
	m.ensureCalls.Add(1)
	if m.ensureFn != nil {
		return m.ensureFn(ctx, dim)
	}
	return nil
}

func (m *mockCollection) Upsert(ctx context.Context, id string, vec []float32, payload []byte) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, id, vec, payload)
	}
	return nil
}

func (m *mockCollection) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockCollection) Query(ctx context.Context, vec []float32, limit int) ([]Hit, error) {
	if m.queryFn != nil {
		return m.queryFn(ctx, vec, limit)
	}
	return nil, nil
}

// mockRedisStore implements redisStore for tests.
type mockRedisStore struct {
	hsetFn   func(ctx context.Context, key string, fields map[string]string) error
	removeFn func(ctx context.Context, key string) (bool, error)
	createFn func(ctx context.Context, def *db.IndexDefinition) error
	dimFn    func(ctx context.Context, name, attribute string) (int, error)
	knnFn    func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

func (m *mockRedisStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockRedisStore) Remove(ctx context.Context, key string) (bool, error) {
	if m.removeFn != nil {
		return m.removeFn(ctx, key)
	}
	return false, nil
}

func (m *mockRedisStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createFn != nil {
		return m.createFn(ctx, def)
	}
	return nil
}

func (m *mockRedisStore) IndexVectorDim(ctx context.Context, name, attribute string) (int, error) {
	if m.dimFn != nil {
		return m.dimFn(ctx, name, attribute)
	}
	return 0, nil
}

func (m *mockRedisStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.knnFn != nil {
		return m.knnFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

var testTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func testDoc(id, title, content string) document.Document {
	d, err := document.New(document.Draft{ID: id, Title: title, Content: content, Author: "alice"}, "m", testTime)
	if err != nil {
		panic(err)
	}
	return d
}

func loaderOf(e domain.Embedder) EmbedderLoader {
	return func(context.Context) (domain.Embedder, error) { return e, nil }
}

func nopLogger() *zap.Logger { return zap.NewNop() }
