package reindex

import (
	"context"

	domdoc "github.com/kailas-cloud/docvault/internal/domain/document"
)

// Records reads canonical documents.
type Records interface {
	List(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id string) (domdoc.Document, bool, error)
}

// KeywordIndex is the full-text projection being rebuilt.
type KeywordIndex interface {
	EnsureSchema(ctx context.Context) (bool, error)
	Index(ctx context.Context, doc *domdoc.Document) error
	Delete(ctx context.Context, id string) (bool, error)
}

// VectorIndex is the embedding projection being rebuilt.
type VectorIndex interface {
	Upsert(ctx context.Context, doc *domdoc.Document) error
	Delete(ctx context.Context, id string) error
}
