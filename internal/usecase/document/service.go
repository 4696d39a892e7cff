package document

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docvault/internal/domain"
	domdoc "github.com/kailas-cloud/docvault/internal/domain/document"
	"github.com/kailas-cloud/docvault/internal/domain/document/patch"
	"github.com/kailas-cloud/docvault/internal/domain/search/result"
)

// Service orchestrates document writes across the record store and both search projections.
type Service struct {
	repo     Repository
	keyword  KeywordIndex
	vector   VectorIndex
	searcher Searcher
	logger   *zap.Logger
	newID    func() string
}

// New creates a document service. vector may be nil when vector search is disabled.
func New(repo Repository, keyword KeywordIndex, vector VectorIndex, searcher Searcher, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		keyword:  keyword,
		vector:   vector,
		searcher: searcher,
		logger:   logger,
		newID:    uuid.NewString,
	}
}

// Create stores a document and indexes it. A missing id is replaced with a random UUID.
// A keyword indexing failure is returned but the record is kept; vector failures are only logged.
func (s *Service) Create(ctx context.Context, draft domdoc.Draft, creator string) (domdoc.Document, error) {
	if draft.ID == "" {
		draft.ID = s.newID()
	}

	doc, err := s.repo.Create(ctx, draft, creator)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("create document: %w", err)
	}
	if err := s.project(ctx, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// Get returns a document by id.
func (s *Service) Get(ctx context.Context, id string) (domdoc.Document, error) {
	doc, found, err := s.repo.Get(ctx, id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("get document: %w", err)
	}
	if !found {
		return domdoc.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrDocumentNotFound)
	}
	return doc, nil
}

// List returns the enumerated document ids.
func (s *Service) List(ctx context.Context) ([]string, error) {
	ids, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return ids, nil
}

// Search delegates to the hybrid search orchestrator.
func (s *Service) Search(ctx context.Context, query string, size, offset int) (result.Page, error) {
	return s.searcher.Search(ctx, query, size, offset)
}

// Update patches a document and re-indexes it.
func (s *Service) Update(ctx context.Context, id string, p patch.Patch) (domdoc.Document, error) {
	doc, found, err := s.repo.Update(ctx, id, p)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("update document: %w", err)
	}
	if !found {
		return domdoc.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrDocumentNotFound)
	}
	if err := s.project(ctx, &doc); err != nil {
		return doc, err
	}
	return doc, nil
}

// ToggleDelete flips the soft-delete flag. Search projections are left as they are.
func (s *Service) ToggleDelete(ctx context.Context, id string) (domdoc.Document, error) {
	doc, found, err := s.repo.ToggleDelete(ctx, id)
	if err != nil {
		return domdoc.Document{}, fmt.Errorf("toggle delete: %w", err)
	}
	if !found {
		return domdoc.Document{}, fmt.Errorf("document %s: %w", id, domain.ErrDocumentNotFound)
	}
	return doc, nil
}

// Unindex removes a document from both search projections. The record stays.
func (s *Service) Unindex(ctx context.Context, id string) (bool, error) {
	removed, err := s.keyword.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("unindex %s: %w", id, err)
	}
	if removed && s.vector != nil {
		if err := s.vector.Delete(ctx, id); err != nil {
			s.logger.Warn("Vector unindex failed", zap.String("id", id), zap.Error(err))
		}
	}
	return removed, nil
}

// project writes the keyword and vector projections of doc.
func (s *Service) project(ctx context.Context, doc *domdoc.Document) error {
	if err := s.keyword.Index(ctx, doc); err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID(), err)
	}
	if s.vector == nil {
		return nil
	}
	if err := s.vector.Upsert(ctx, doc); err != nil {
		s.logger.Warn("Vector upsert failed", zap.String("id", doc.ID()), zap.Error(err))
	}
	return nil
}
