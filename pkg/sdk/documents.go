package docvault

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DocumentService manages documents and runs searches.
type DocumentService struct {
	c *Client
}

// Create stores a new document and indexes it. Requires the manager role.
//
// A keyword indexing failure is returned as an error even though the record
// was stored; the document can be re-indexed with a sweep.
func (s *DocumentService) Create(ctx context.Context, in DocumentInput) (Document, error) {
	var out Document
	if err := s.c.do(ctx, "create", http.MethodPost, "/documents", nil, in, &out); err != nil {
		return Document{}, err
	}
	return out, nil
}

// Get retrieves a document by ID, including soft-deleted ones.
func (s *DocumentService) Get(ctx context.Context, id string) (Document, error) {
	var out Document
	if err := s.c.do(ctx, "get", http.MethodGet, docPath(id), nil, nil, &out); err != nil {
		return Document{}, err
	}
	return out, nil
}

// List returns the IDs of all enumerated documents in creation order.
func (s *DocumentService) List(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.c.do(ctx, "list", http.MethodGet, "/documents", nil, nil, &ids); err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Patch applies a partial update and re-indexes the document.
func (s *DocumentService) Patch(ctx context.Context, id string, p DocumentPatch) (Document, error) {
	var out Document
	if err := s.c.do(ctx, "patch", http.MethodPatch, docPath(id), nil, p, &out); err != nil {
		return Document{}, err
	}
	return out, nil
}

// ToggleDelete flips the soft-delete flag.
func (s *DocumentService) ToggleDelete(ctx context.Context, id string) (Document, error) {
	var out Document
	if err := s.c.do(ctx, "toggle_delete", http.MethodPost, docPath(id)+"/toggle-delete", nil, nil, &out); err != nil {
		return Document{}, err
	}
	return out, nil
}

// Unindex removes a document from the search indexes; the record stays.
// Reports whether the document was present in the keyword index.
func (s *DocumentService) Unindex(ctx context.Context, id string) (bool, error) {
	var out unindexResponse
	if err := s.c.do(ctx, "unindex", http.MethodDelete, docPath(id)+"/index", nil, nil, &out); err != nil {
		return false, err
	}
	return out.Removed, nil
}

// SearchOption tunes a search request.
type SearchOption func(url.Values)

// WithLimit sets the page size. The server clamps it to its maximum.
func WithLimit(n int) SearchOption {
	return func(v url.Values) { v.Set("limit", strconv.Itoa(n)) }
}

// WithOffset skips the first n keyword hits.
func WithOffset(n int) SearchOption {
	return func(v url.Values) { v.Set("offset", strconv.Itoa(n)) }
}

// Search runs a hybrid keyword and vector search.
func (s *DocumentService) Search(ctx context.Context, query string, opts ...SearchOption) (SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return SearchResult{}, errors.Join(ErrInvalidQuery, errors.New("docvault: empty query"))
	}
	v := url.Values{"q": {query}}
	for _, o := range opts {
		o(v)
	}

	var out searchResponse
	if err := s.c.do(ctx, "search", http.MethodGet, "/documents/search", v, nil, &out); err != nil {
		return SearchResult{}, err
	}
	hits := out.Results
	if hits == nil {
		hits = []SearchHit{}
	}
	return SearchResult{
		Total: out.Total,
		Hits:  hits,
		Took:  time.Duration(out.Took) * time.Millisecond,
	}, nil
}

func docPath(id string) string {
	return "/documents/" + url.PathEscape(id)
}
