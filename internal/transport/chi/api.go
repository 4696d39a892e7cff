package chi

import (
	"time"

	domdoc "github.com/kailas-cloud/docvault/internal/domain/document"
	"github.com/kailas-cloud/docvault/internal/domain/search/result"
)

// ErrorCode is the machine-readable error kind in an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	ErrorCodeBadRequest         ErrorCode = "bad_request"
	ErrorCodeValidationFailed   ErrorCode = "validation_failed"
	ErrorCodeInvalidQuery       ErrorCode = "invalid_query"
	ErrorCodeUnauthorized       ErrorCode = "unauthorized"
	ErrorCodeForbidden          ErrorCode = "forbidden"
	ErrorCodeNotFound           ErrorCode = "not_found"
	ErrorCodeDocumentNotFound   ErrorCode = "document_not_found"
	ErrorCodeIndexContention    ErrorCode = "index_contention"
	ErrorCodeSchemaConflict     ErrorCode = "schema_conflict"
	ErrorCodeRateLimited        ErrorCode = "rate_limited"
	ErrorCodeBackendUnavailable ErrorCode = "backend_unavailable"
	ErrorCodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Document is the wire form of a stored document.
type Document struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Author    string         `json:"author,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedBy string         `json:"created_by,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Deleted   bool           `json:"deleted"`
}

// CreateDocumentRequest is the body of POST /documents.
type CreateDocumentRequest struct {
	ID       string         `json:"id,omitempty"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Author   string         `json:"author,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// PatchDocumentRequest is the body of PATCH /documents/{id}. Absent fields are left unchanged.
type PatchDocumentRequest struct {
	Title    *string        `json:"title,omitempty"`
	Content  *string        `json:"content,omitempty"`
	Author   *string        `json:"author,omitempty"`
	Tags     *[]string      `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResultItem is one search hit.
type SearchResultItem struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Author    string         `json:"author,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Score     float64        `json:"score"`
	Source    string         `json:"source"`
}

// SearchResponse is the body of GET /documents/search. Took is in milliseconds.
type SearchResponse struct {
	Total   int                `json:"total"`
	Results []SearchResultItem `json:"results"`
	Took    int64              `json:"took"`
}

// UnindexResponse is the body of DELETE /documents/{id}/index.
type UnindexResponse struct {
	Removed bool `json:"removed"`
}

func documentToAPI(d *domdoc.Document) Document {
	return Document{
		ID:        d.ID(),
		Title:     d.Title(),
		Content:   d.Content(),
		Author:    d.Author(),
		Tags:      d.Tags(),
		Metadata:  d.Metadata(),
		CreatedBy: d.CreatedBy(),
		CreatedAt: d.CreatedAt(),
		UpdatedAt: d.UpdatedAt(),
		Deleted:   d.Deleted(),
	}
}

func searchResultToAPI(r *result.Result) SearchResultItem {
	return SearchResultItem{
		ID:        r.ID(),
		Title:     r.Title(),
		Content:   r.Content(),
		Author:    r.Author(),
		Tags:      r.Tags(),
		Metadata:  r.Metadata(),
		CreatedAt: r.CreatedAt(),
		UpdatedAt: r.UpdatedAt(),
		Score:     r.Score(),
		Source:    string(r.Source()),
	}
}

func pageToAPI(p result.Page) SearchResponse {
	items := make([]SearchResultItem, len(p.Hits))
	for i := range p.Hits {
		items[i] = searchResultToAPI(&p.Hits[i])
	}
	return SearchResponse{Total: p.Total, Results: items, Took: p.Took.Milliseconds()}
}
