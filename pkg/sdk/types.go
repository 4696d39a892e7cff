package docvault

import "time"

// Document is a stored document as returned by the server.
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

// DocumentInput is the payload for creating a document.
// An empty ID lets the server assign one.
type DocumentInput struct {
	ID       string         `json:"id,omitempty"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Author   string         `json:"author,omitempty"`
	Tags     []string       `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// DocumentPatch is a partial update. Nil fields are left unchanged;
// Metadata keys are merged into the stored map.
type DocumentPatch struct {
	Title    *string        `json:"title,omitempty"`
	Content  *string        `json:"content,omitempty"`
	Author   *string        `json:"author,omitempty"`
	Tags     *[]string      `json:"tags,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchHit is one ranked search result.
type SearchHit struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Author    string         `json:"author,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Score     float64        `json:"score"`
	Source    string         `json:"source"` // "keyword" or "vector"
}

// SearchResult is one page of merged search results.
type SearchResult struct {
	Total int
	Hits  []SearchHit
	Took  time.Duration
}

type searchResponse struct {
	Total   int         `json:"total"`
	Results []SearchHit `json:"results"`
	Took    int64       `json:"took"` // milliseconds
}

type unindexResponse struct {
	Removed bool `json:"removed"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// String returns a pointer to s, for DocumentPatch fields.
func String(s string) *string { return &s }

// Strings returns a pointer to s, for DocumentPatch.Tags.
func Strings(s ...string) *[]string {
	if s == nil {
		s = []string{}
	}
	return &s
}
