package document

import (
	"context"

	domdoc "github.com/kailas-cloud/docvault/internal/domain/document"
	"github.com/kailas-cloud/docvault/internal/domain/document/patch"
	"github.com/kailas-cloud/docvault/internal/domain/search/result"
)

// Repository defines the record storage contract for documents.
type Repository interface {
	Create(ctx context.Context, draft domdoc.Draft, creator string) (domdoc.Document, error)
	Get(ctx context.Context, id string) (domdoc.Document, bool, error)
	List(ctx context.Context) ([]string, error)
	Update(ctx context.Context, id string, p patch.Patch) (domdoc.Document, bool, error)
	ToggleDelete(ctx context.Context, id string) (domdoc.Document, bool, error)
}

// KeywordIndex maintains the full-text projection of documents.
type KeywordIndex interface {
	Index(ctx context.Context, doc *domdoc.Document) error
	Delete(ctx context.Context, id string) (bool, error)
}

// VectorIndex maintains the embedding projection of documents.
type VectorIndex interface {
	Upsert(ctx context.Context, doc *domdoc.Document) error
	Delete(ctx context.Context, id string) error
}

// Searcher runs hybrid search queries.
type Searcher interface {
	Search(ctx context.Context, query string, size, offset int) (result.Page, error)
}
