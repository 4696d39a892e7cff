package docvault

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

const docJSON = `{
	"id": "doc-1",
	"title": "Hybrid search in Go",
	"content": "Keyword and vector legs.",
	"author": "ana",
	"tags": ["go", "search"],
	"created_by": "api-key",
	"created_at": "2026-01-02T03:04:05Z",
	"updated_at": "2026-01-02T03:04:05Z",
	"deleted": false
}`

func TestDocuments_Create(t *testing.T) {
	srv, rec := fakeServer(t, http.StatusCreated, docJSON)
	c := newTestClient(t, srv.URL)

	doc, err := c.Documents().Create(context.Background(), DocumentInput{
		Title:   "Hybrid search in Go",
		Content: "Keyword and vector legs.",
		Tags:    []string{"go", "search"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.get().method != http.MethodPost || rec.get().path != "/documents" {
		t.Errorf("request = %s %s", rec.get().method, rec.get().path)
	}
	if rec.get().ctype != "application/json" {
		t.Errorf("Content-Type = %q", rec.get().ctype)
	}

	var sent map[string]any
	decodeJSON(t, rec.get().body, &sent)
	if _, ok := sent["id"]; ok {
		t.Error("empty id should be omitted so the server assigns one")
	}
	if sent["title"] != "Hybrid search in Go" {
		t.Errorf("sent title = %v", sent["title"])
	}

	if doc.ID != "doc-1" || doc.CreatedBy != "api-key" {
		t.Errorf("doc = %+v", doc)
	}
	if !doc.CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("created_at = %v", doc.CreatedAt)
	}
}

func TestDocuments_Get_EscapesID(t *testing.T) {
	srv, rec := fakeServer(t, http.StatusOK, docJSON)
	c := newTestClient(t, srv.URL)

	if _, err := c.Documents().Get(context.Background(), "a b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.get().method != http.MethodGet || rec.get().path != "/documents/a%20b" {
		t.Errorf("request = %s %s", rec.get().method, rec.get().path)
	}
}

func TestDocuments_List(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK, `["b","a"]`)
	c := newTestClient(t, srv.URL)

	ids, err := c.Documents().List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 || ids[0] != "b" || ids[1] != "a" {
		t.Errorf("ids = %v, order must be preserved", ids)
	}
}

func TestDocuments_ListNullIsEmpty(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK, `null`)
	c := newTestClient(t, srv.URL)

	ids, err := c.Documents().List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids == nil || len(ids) != 0 {
		t.Errorf("ids = %#v, want empty slice", ids)
	}
}

func TestDocuments_Patch(t *testing.T) {
	srv, rec := fakeServer(t, http.StatusOK, docJSON)
	c := newTestClient(t, srv.URL)

	_, err := c.Documents().Patch(context.Background(), "doc-1", DocumentPatch{
		Title: String("New title"),
		Tags:  Strings(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.get().method != http.MethodPatch || rec.get().path != "/documents/doc-1" {
		t.Errorf("request = %s %s", rec.get().method, rec.get().path)
	}

	var sent map[string]any
	decodeJSON(t, rec.get().body, &sent)
	if sent["title"] != "New title" {
		t.Errorf("title = %v", sent["title"])
	}
	if tags, ok := sent["tags"].([]any); !ok || len(tags) != 0 {
		t.Errorf("tags = %#v, want explicit empty list", sent["tags"])
	}
	if _, ok := sent["content"]; ok {
		t.Error("unset content should be omitted")
	}
}

func TestDocuments_ToggleDelete(t *testing.T) {
	srv, rec := fakeServer(t, http.StatusOK, `{"id":"doc-1","title":"t","content":"c","deleted":true,
		"created_at":"2026-01-02T03:04:05Z","updated_at":"2026-01-02T03:04:05Z"}`)
	c := newTestClient(t, srv.URL)

	doc, err := c.Documents().ToggleDelete(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.get().method != http.MethodPost || rec.get().path != "/documents/doc-1/toggle-delete" {
		t.Errorf("request = %s %s", rec.get().method, rec.get().path)
	}
	if !doc.Deleted {
		t.Error("expected deleted document")
	}
}

func TestDocuments_Unindex(t *testing.T) {
	srv, rec := fakeServer(t, http.StatusOK, `{"removed":true}`)
	c := newTestClient(t, srv.URL)

	removed, err := c.Documents().Unindex(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.get().method != http.MethodDelete || rec.get().path != "/documents/doc-1/index" {
		t.Errorf("request = %s %s", rec.get().method, rec.get().path)
	}
	if !removed {
		t.Error("expected removed = true")
	}
}

func TestDocuments_Search(t *testing.T) {
	srv, rec := fakeServer(t, http.StatusOK, `{
		"total": 7,
		"took": 12,
		"results": [
			{"id":"v1","title":"t","content":"c","score":0.91,"source":"vector",
			 "created_at":"2026-01-02T03:04:05Z","updated_at":"2026-01-02T03:04:05Z"},
			{"id":"k1","title":"t","content":"c","score":3.2,"source":"keyword",
			 "created_at":"2026-01-02T03:04:05Z","updated_at":"2026-01-02T03:04:05Z"}
		]
	}`)
	c := newTestClient(t, srv.URL)

	res, err := c.Documents().Search(context.Background(), "hybrid go", WithLimit(5), WithOffset(10))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.get().path != "/documents/search" {
		t.Errorf("path = %q", rec.get().path)
	}
	if rec.get().query != "limit=5&offset=10&q=hybrid+go" {
		t.Errorf("query = %q", rec.get().query)
	}
	if res.Total != 7 || res.Took != 12*time.Millisecond {
		t.Errorf("total = %d, took = %v", res.Total, res.Took)
	}
	if len(res.Hits) != 2 || res.Hits[0].Source != "vector" || res.Hits[1].ID != "k1" {
		t.Errorf("hits = %+v", res.Hits)
	}
}

func TestDocuments_SearchEmptyQuery(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")

	_, err := c.Documents().Search(context.Background(), "   ")
	if !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("err = %v, want ErrInvalidQuery", err)
	}
}

func TestDocuments_SearchNoResults(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK, `{"total":0,"took":1,"results":null}`)
	c := newTestClient(t, srv.URL)

	res, err := c.Documents().Search(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Hits == nil || len(res.Hits) != 0 {
		t.Errorf("hits = %#v, want empty slice", res.Hits)
	}
}
