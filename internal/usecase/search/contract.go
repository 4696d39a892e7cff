package search

import (
	"context"

	"github.com/kailas-cloud/docvault/internal/domain/search/result"
	"github.com/kailas-cloud/docvault/internal/repository/vector"
)

// KeywordSearcher is the authoritative full-text leg.
type KeywordSearcher interface {
	Search(ctx context.Context, query string, size, offset int) (result.Page, error)
}

// VectorSearcher is the optional similarity leg.
type VectorSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]vector.Hit, error)
}
