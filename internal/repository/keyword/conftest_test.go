package keyword

import (
	"context"
	"time"

	"github.com/kailas-cloud/docvault/internal/db"
	"github.com/kailas-cloud/docvault/internal/domain/document"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	pingFn       func(ctx context.Context) error
	hsetFn       func(ctx context.Context, key string, fields map[string]string) error
	removeFn     func(ctx context.Context, key string) (bool, error)
	createFn     func(ctx context.Context, def *db.IndexDefinition) error
	attributesFn func(ctx context.Context, name string) ([]string, error)
	searchFn     func(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *mockStore) HSet(ctx context.Context, key string, fields map[string]string) error {
	if m.hsetFn != nil {
		return m.hsetFn(ctx, key, fields)
	}
	return nil
}

func (m *mockStore) Remove(ctx context.Context, key string) (bool, error) {
	if m.removeFn != nil {
		return m.removeFn(ctx, key)
	}
	return false, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createFn != nil {
		return m.createFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexAttributes(ctx context.Context, name string) ([]string, error) {
	if m.attributesFn != nil {
		return m.attributesFn(ctx, name)
	}
	return nil, db.ErrIndexNotFound
}

func (m *mockStore) SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

var testTime = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func testDoc(id, title, content, author string, tags ...string) document.Document {
	d, err := document.New(document.Draft{
		ID: id, Title: title, Content: content, Author: author,
		Tags: tags, Metadata: map[string]any{"lang": "en"},
	}, "manager-1", testTime)
	if err != nil {
		panic(err)
	}
	return d
}
