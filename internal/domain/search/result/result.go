package result

import (
	"time"

	"github.com/kailas-cloud/docvault/internal/domain/document"
)

// Source names the search backend that produced a hit.
type Source string

const (
	// SourceKeyword marks a hit from the full-text backend.
	SourceKeyword Source = "keyword"
	// SourceVector marks a hit from the vector-similarity backend.
	SourceVector Source = "vector"
)

// Result is a single search hit: the searchable projection of a document plus its score.
type Result struct {
	id        string
	title     string
	content   string
	author    string
	tags      []string
	metadata  map[string]any
	createdAt time.Time
	updatedAt time.Time
	score     float64
	source    Source
}

// Projection is the searchable subset of a document stored in the search backends.
type Projection struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Author    string         `json:"author"`
	Tags      []string       `json:"tags"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Complete reports whether a projection decoded from a backend carries the
// fields every hit must have.
func (p *Projection) Complete() bool {
	return p.ID != "" && p.Title != "" && !p.CreatedAt.IsZero()
}

// ProjectionOf extracts the searchable projection of a document.
// The soft-delete flag and the creator identity are not part of it.
func ProjectionOf(d *document.Document) Projection {
	return Projection{
		ID:        d.ID(),
		Title:     d.Title(),
		Content:   d.Content(),
		Author:    d.Author(),
		Tags:      d.Tags(),
		Metadata:  d.Metadata(),
		CreatedAt: d.CreatedAt(),
		UpdatedAt: d.UpdatedAt(),
	}
}

// New creates a search result from a projection.
func New(p Projection, score float64, source Source) Result {
	return Result{
		id: p.ID, title: p.Title, content: p.Content, author: p.Author,
		tags: p.Tags, metadata: p.Metadata,
		createdAt: p.CreatedAt, updatedAt: p.UpdatedAt,
		score: score, source: source,
	}
}

// ID returns the document identifier.
func (r *Result) ID() string { return r.id }

// Title returns the document title.
func (r *Result) Title() string { return r.title }

// Content returns the document content.
func (r *Result) Content() string { return r.content }

// Author returns the document author.
func (r *Result) Author() string { return r.author }

// Tags returns the document tags.
func (r *Result) Tags() []string { return r.tags }

// Metadata returns the document metadata.
func (r *Result) Metadata() map[string]any { return r.metadata }

// CreatedAt returns the document creation time.
func (r *Result) CreatedAt() time.Time { return r.createdAt }

// UpdatedAt returns the document update time.
func (r *Result) UpdatedAt() time.Time { return r.updatedAt }

// Score returns the backend relevance score.
func (r *Result) Score() float64 { return r.score }

// Source returns the backend that produced the hit.
func (r *Result) Source() Source { return r.source }

// Page is one ranked, paginated slice of keyword hits.
type Page struct {
	Total int
	Hits  []Result
	Took  time.Duration
}
