package keyword

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docvault/internal/domain"
	"github.com/kailas-cloud/docvault/internal/domain/document"
	"github.com/kailas-cloud/docvault/internal/domain/search/result"
)

const (
	bleveDocType = "document"
	fieldSource  = "source"
)

// Bleve is the keyword backend over an embedded Bleve index.
type Bleve struct {
	mu      sync.RWMutex
	index   bleve.Index
	closed  bool
	created atomic.Bool
	logger  *zap.Logger
}

// bleveDoc is the indexed shape. Source holds the full projection as JSON
// and is stored only.
type bleveDoc struct {
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Source    string    `json:"source"`
}

// BleveType implements bleve's mapping.Classifier.
func (bleveDoc) BleveType() string { return bleveDocType }

// OpenBleve opens the index at path, creating it if absent.
// An empty path creates an in-memory index.
func OpenBleve(path string, logger *zap.Logger) (*Bleve, error) {
	m := bleveMapping()

	var (
		idx     bleve.Index
		err     error
		created bool
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(m)
		created = true
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create directory for %s: %w", path, err)
		}
		idx, err = bleve.Open(path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(path, m)
			created = true
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open keyword index: %w", err)
	}

	b := &Bleve{index: idx, logger: logger}
	b.created.Store(created)
	return b, nil
}

func bleveMapping() *mapping.IndexMappingImpl {
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name

	titleExact := bleve.NewKeywordFieldMapping()
	titleExact.Name = fieldTitleExact

	exact := bleve.NewKeywordFieldMapping()

	date := bleve.NewDateTimeFieldMapping()

	source := bleve.NewTextFieldMapping()
	source.Index = false
	source.Store = true
	source.IncludeInAll = false

	doc := bleve.NewDocumentStaticMapping()
	doc.AddFieldMappingsAt(fieldTitle, text, titleExact)
	doc.AddFieldMappingsAt(fieldContent, text)
	doc.AddFieldMappingsAt(fieldAuthor, exact)
	doc.AddFieldMappingsAt(fieldTags, exact)
	doc.AddFieldMappingsAt(fieldCreatedAt, date)
	doc.AddFieldMappingsAt(fieldUpdatedAt, date)
	doc.AddFieldMappingsAt(fieldSource, source)

	m := bleve.NewIndexMapping()
	m.AddDocumentMapping(bleveDocType, doc)
	m.DefaultAnalyzer = standard.Name
	return m
}

// EnsureSchema reports true exactly once for an index this process created;
// the mapping itself is fixed when the index is created.
func (b *Bleve) EnsureSchema(_ context.Context) (bool, error) {
	if err := b.check(); err != nil {
		return false, err
	}
	return b.created.CompareAndSwap(true, false), nil
}

// Index upserts the searchable projection of doc. Bleve makes the write
// visible to searches before Index returns.
func (b *Bleve) Index(_ context.Context, doc *document.Document) error {
	p := result.ProjectionOf(doc)
	src, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode projection %s: %w", p.ID, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("index %s: %w: index is closed", p.ID, domain.ErrBackendUnavailable)
	}

	bd := bleveDoc{
		Title: p.Title, Content: p.Content, Author: p.Author, Tags: p.Tags,
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt, Source: string(src),
	}
	if err := b.index.Index(p.ID, bd); err != nil {
		return fmt.Errorf("index %s: %w: %w", p.ID, domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Search runs the hybrid fuzzy + substring query with bleve's own ranking.
func (b *Bleve) Search(ctx context.Context, q string, size, offset int) (result.Page, error) {
	qry := bleveQuery(q)
	if qry == nil {
		return result.Page{}, nil
	}

	req := bleve.NewSearchRequestOptions(qry, size, offset, false)
	req.Fields = []string{fieldSource}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return result.Page{}, fmt.Errorf("keyword search: %w: index is closed", domain.ErrBackendUnavailable)
	}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return result.Page{}, fmt.Errorf("keyword search: %w: %w", domain.ErrBackendUnavailable, err)
	}

	hits := make([]result.Result, 0, len(res.Hits))
	for _, h := range res.Hits {
		raw, _ := h.Fields[fieldSource].(string)
		var p result.Projection
		if err := json.Unmarshal([]byte(raw), &p); err != nil || !p.Complete() {
			b.logger.Warn("Skipping malformed keyword hit", zap.String("id", h.ID), zap.Error(err))
			continue
		}
		hits = append(hits, result.New(p, h.Score, result.SourceKeyword))
	}

	return result.Page{Total: int(res.Total), Hits: hits, Took: res.Took}, nil
}

// Delete removes the entry for id and reports whether it existed.
func (b *Bleve) Delete(_ context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, fmt.Errorf("unindex %s: %w: index is closed", id, domain.ErrBackendUnavailable)
	}

	existing, err := b.index.Document(id)
	if err != nil {
		return false, fmt.Errorf("unindex %s: %w: %w", id, domain.ErrBackendUnavailable, err)
	}
	if existing == nil {
		return false, nil
	}
	if err := b.index.Delete(id); err != nil {
		return false, fmt.Errorf("unindex %s: %w: %w", id, domain.ErrBackendUnavailable, err)
	}
	return true, nil
}

// Ping reports whether the index is open and readable.
func (b *Bleve) Ping(_ context.Context) error {
	if err := b.check(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, err := b.index.DocCount(); err != nil {
		return fmt.Errorf("keyword index: %w", err)
	}
	return nil
}

// Close closes the index. Further calls fail with ErrBackendUnavailable.
func (b *Bleve) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

func (b *Bleve) check() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("keyword index: %w: index is closed", domain.ErrBackendUnavailable)
	}
	return nil
}

// bleveQuery mirrors textClauses: per-term fuzzy matches on title and content,
// the whole query as an exact author/tags value, and per-term wildcards.
func bleveQuery(q string) query.Query {
	terms := Terms(q)
	if len(terms) == 0 {
		return nil
	}

	var should []query.Query
	for _, t := range terms {
		for _, f := range []struct {
			name  string
			boost float64
		}{{fieldTitle, weightTitle}, {fieldContent, weightContent}} {
			fq := bleve.NewFuzzyQuery(t)
			fq.SetField(f.name)
			fq.SetFuzziness(Fuzziness(t))
			fq.SetBoost(f.boost)
			should = append(should, fq)
		}
	}

	whole := strings.TrimSpace(q)
	for _, f := range []struct {
		name  string
		boost float64
	}{{fieldAuthor, weightAuthor}, {fieldTags, weightTags}} {
		tq := bleve.NewTermQuery(whole)
		tq.SetField(f.name)
		tq.SetBoost(f.boost)
		should = append(should, tq)
	}

	for _, t := range infixTerms(terms) {
		for _, f := range []string{fieldTitle, fieldContent} {
			wq := bleve.NewWildcardQuery("*" + t + "*")
			wq.SetField(f)
			should = append(should, wq)
		}
	}

	dq := bleve.NewDisjunctionQuery(should...)
	dq.SetMin(1)
	return dq
}
