package keyword

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docvault/internal/db"
	"github.com/kailas-cloud/docvault/internal/domain"
	"github.com/kailas-cloud/docvault/internal/domain/search/result"
)

func newTestRedis(ms *mockStore) *Redis {
	return NewRedis(ms, "docvault-documents", "docvault:", zap.NewNop())
}

// --- EnsureSchema ---

func TestRedis_EnsureSchema_Creates(t *testing.T) {
	var got *db.IndexDefinition
	ms := &mockStore{createFn: func(_ context.Context, def *db.IndexDefinition) error {
		got = def
		return nil
	}}

	created, err := newTestRedis(ms).EnsureSchema(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Error("created = false on a fresh backend")
	}
	if got.Name != "docvault-documents" || got.Prefixes[0] != "docvault:kw:" {
		t.Errorf("definition = %s", got)
	}
	if !strings.Contains(got.String(), "title TEXT WEIGHT 3") {
		t.Errorf("title weight missing: %s", got)
	}
}

func TestRedis_EnsureSchema_SecondCallReportsExisting(t *testing.T) {
	r := newTestRedis(nil)
	exists := false
	ms := &mockStore{
		createFn: func(context.Context, *db.IndexDefinition) error {
			if exists {
				return db.ErrIndexExists
			}
			exists = true
			return nil
		},
		attributesFn: func(context.Context, string) ([]string, error) {
			return r.schema().Attributes(), nil
		},
	}
	r.store = ms
	ctx := context.Background()

	first, err := r.EnsureSchema(ctx)
	if err != nil || !first {
		t.Fatalf("first call: created=%v err=%v", first, err)
	}
	second, err := r.EnsureSchema(ctx)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if second {
		t.Error("second call should report the index already existed")
	}
}

func TestRedis_EnsureSchema_Conflict(t *testing.T) {
	ms := &mockStore{
		createFn: func(context.Context, *db.IndexDefinition) error { return db.ErrIndexExists },
		attributesFn: func(context.Context, string) ([]string, error) {
			return []string{"title", "content"}, nil
		},
	}

	_, err := newTestRedis(ms).EnsureSchema(context.Background())
	if !errors.Is(err, domain.ErrSchemaConflict) {
		t.Fatalf("expected ErrSchemaConflict, got %v", err)
	}
}

func TestRedis_EnsureSchema_BackendDown(t *testing.T) {
	ms := &mockStore{createFn: func(context.Context, *db.IndexDefinition) error {
		return &db.Error{Op: db.OpCreateIndex, Err: errors.New("connection refused")}
	}}

	_, err := newTestRedis(ms).EnsureSchema(context.Background())
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

// --- Index ---

func TestRedis_Index_WritesProjection(t *testing.T) {
	var (
		gotKey    string
		gotFields map[string]string
	)
	ms := &mockStore{hsetFn: func(_ context.Context, key string, fields map[string]string) error {
		gotKey, gotFields = key, fields
		return nil
	}}
	doc := testDoc("doc-1", "Release notes", "hybrid search", "alice", "release", "search")

	if err := newTestRedis(ms).Index(context.Background(), &doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotKey != "docvault:kw:doc-1" {
		t.Errorf("key = %q", gotKey)
	}
	want := map[string]string{
		"id": "doc-1", "title": "Release notes", "author": "alice",
		"tags": "release,search", "metadata": `{"lang":"en"}`,
		"created_at": "1714557600000",
	}
	for k, v := range want {
		if gotFields[k] != v {
			t.Errorf("field %s = %q, want %q", k, gotFields[k], v)
		}
	}
	if _, ok := gotFields["deleted"]; ok {
		t.Error("soft-delete flag must not be indexed")
	}
}

func TestRedis_Index_BackendError(t *testing.T) {
	ms := &mockStore{hsetFn: func(context.Context, string, map[string]string) error {
		return errors.New("READONLY")
	}}
	doc := testDoc("doc-1", "t", "c", "a")

	err := newTestRedis(ms).Index(context.Background(), &doc)
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

// --- Search ---

func hitFields(id string) map[string]string {
	return map[string]string{
		"id": id, "title": "Title " + id, "content": "body", "author": "alice",
		"tags": "a,b", "metadata": `{"k":1}`,
		"created_at": "1714557600000", "updated_at": "1714557600000",
	}
}

func TestRedis_Search_BuildsQueryAndParsesHits(t *testing.T) {
	var got *db.TextQuery
	ms := &mockStore{searchFn: func(_ context.Context, q *db.TextQuery) (*db.SearchResult, error) {
		got = q
		return &db.SearchResult{Total: 7, Entries: []db.SearchEntry{
			{Key: "docvault:kw:a", Score: 4.5, Fields: hitFields("a")},
			{Key: "docvault:kw:b", Score: 1.5, Fields: hitFields("b")},
		}}, nil
	}}

	page, err := newTestRedis(ms).Search(context.Background(), "Hybrid searching", 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Offset != 10 || got.Limit != 5 || got.IndexName != "docvault-documents" {
		t.Errorf("paging = %d/%d index=%q", got.Offset, got.Limit, got.IndexName)
	}
	if len(got.Clauses) != 3 {
		t.Fatalf("clauses = %d, want 3", len(got.Clauses))
	}
	fuzzy := got.Clauses[0]
	if fuzzy.Kind != db.ClauseFuzzy || fuzzy.Terms[0].Text != "hybrid" || fuzzy.Terms[0].Distance != 2 {
		t.Errorf("fuzzy clause = %+v", fuzzy)
	}
	if got.Clauses[1].Kind != db.ClauseExact || got.Clauses[1].Weight != 2 {
		t.Errorf("exact clause = %+v", got.Clauses[1])
	}
	if got.Clauses[2].Kind != db.ClauseInfix || len(got.Clauses[2].Terms) != 2 {
		t.Errorf("infix clause = %+v", got.Clauses[2])
	}

	if page.Total != 7 || len(page.Hits) != 2 {
		t.Fatalf("page = total %d, %d hits", page.Total, len(page.Hits))
	}
	h := page.Hits[0]
	if h.ID() != "a" || h.Score() != 4.5 || h.Source() != result.SourceKeyword {
		t.Errorf("hit = %s %v %s", h.ID(), h.Score(), h.Source())
	}
	if len(h.Tags()) != 2 || h.Metadata()["k"] != float64(1) || !h.CreatedAt().Equal(testTime) {
		t.Errorf("projection = %v %v %v", h.Tags(), h.Metadata(), h.CreatedAt())
	}
}

func TestRedis_Search_SkipsMalformedHits(t *testing.T) {
	bad := hitFields("bad")
	bad["metadata"] = "{not json"
	noTime := hitFields("no-time")
	delete(noTime, "created_at")
	noID := hitFields("")

	ms := &mockStore{searchFn: func(context.Context, *db.TextQuery) (*db.SearchResult, error) {
		return &db.SearchResult{Total: 4, Entries: []db.SearchEntry{
			{Key: "docvault:kw:bad", Fields: bad},
			{Key: "docvault:kw:ok", Fields: hitFields("ok")},
			{Key: "docvault:kw:no-time", Fields: noTime},
			{Key: "docvault:kw:", Fields: noID},
		}}, nil
	}}

	page, err := newTestRedis(ms).Search(context.Background(), "body", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Hits) != 1 || page.Hits[0].ID() != "ok" {
		t.Errorf("hits = %v", page.Hits)
	}
	if page.Total != 4 {
		t.Errorf("Total = %d, backend total is kept", page.Total)
	}
}

func TestRedis_Search_NoTerms(t *testing.T) {
	called := false
	ms := &mockStore{searchFn: func(context.Context, *db.TextQuery) (*db.SearchResult, error) {
		called = true
		return nil, nil
	}}

	page, err := newTestRedis(ms).Search(context.Background(), "!!!", 10, 0)
	if err != nil || page.Total != 0 || called {
		t.Errorf("page=%+v err=%v called=%v", page, err, called)
	}
}

func TestRedis_Search_BackendError(t *testing.T) {
	ms := &mockStore{searchFn: func(context.Context, *db.TextQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: errors.New("timeout")}
	}}

	_, err := newTestRedis(ms).Search(context.Background(), "x y", 10, 0)
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("expected ErrBackendUnavailable, got %v", err)
	}
}

// --- Delete ---

func TestRedis_Delete(t *testing.T) {
	var gotKey string
	ms := &mockStore{removeFn: func(_ context.Context, key string) (bool, error) {
		gotKey = key
		return key == "docvault:kw:doc-1", nil
	}}
	r := newTestRedis(ms)
	ctx := context.Background()

	ok, err := r.Delete(ctx, "doc-1")
	if err != nil || !ok {
		t.Errorf("Delete(doc-1) = %v, %v", ok, err)
	}
	if gotKey != "docvault:kw:doc-1" {
		t.Errorf("key = %q", gotKey)
	}

	ok, err = r.Delete(ctx, "missing")
	if err != nil || ok {
		t.Errorf("Delete(missing) = %v, %v; want false, nil", ok, err)
	}
}
