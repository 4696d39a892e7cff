package keyword

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docvault/internal/db"
	"github.com/kailas-cloud/docvault/internal/domain"
	"github.com/kailas-cloud/docvault/internal/domain/document"
	"github.com/kailas-cloud/docvault/internal/domain/search/result"
)

// store is the consumer interface for the RediSearch driver (ISP).
type store interface {
	Ping(ctx context.Context) error
	HSet(ctx context.Context, key string, fields map[string]string) error
	Remove(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexAttributes(ctx context.Context, name string) ([]string, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Hash fields of a keyword entry.
const (
	fieldID         = "id"
	fieldTitle      = "title"
	fieldTitleExact = "title_exact"
	fieldContent    = "content"
	fieldAuthor     = "author"
	fieldTags       = "tags"
	fieldMetadata   = "metadata"
	fieldCreatedAt  = "created_at"
	fieldUpdatedAt  = "updated_at"
)

const tagSeparator = ","

var returnFields = []string{
	fieldID, fieldTitle, fieldContent, fieldAuthor, fieldTags,
	fieldMetadata, fieldCreatedAt, fieldUpdatedAt,
}

// Redis is the keyword backend over a RediSearch FT index of hashes.
type Redis struct {
	store  store
	index  string
	prefix string
	logger *zap.Logger
	now    func() time.Time
}

// NewRedis creates the RediSearch keyword backend.
// Entries live under <keyPrefix>kw:<id>.
func NewRedis(s store, indexName, keyPrefix string, logger *zap.Logger) *Redis {
	return &Redis{
		store:  s,
		index:  indexName,
		prefix: keyPrefix + "kw:",
		logger: logger,
		now:    time.Now,
	}
}

func (r *Redis) schema() *db.IndexDefinition {
	return db.NewIndex(r.index).
		Prefix(r.prefix).
		Text(fieldTitle, weightTitle).
		Tag(fieldTitle, fieldTitleExact, "").
		Text(fieldContent, weightContent).
		Tag(fieldAuthor, "", "").
		Tag(fieldTags, "", tagSeparator).
		Numeric(fieldCreatedAt).
		Numeric(fieldUpdatedAt).
		MustBuild()
}

// EnsureSchema creates the index if missing. It reports false when the index
// already existed; an existing index lacking one of the expected attributes
// is a schema conflict.
func (r *Redis) EnsureSchema(ctx context.Context) (bool, error) {
	def := r.schema()

	err := r.store.CreateIndex(ctx, def)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, db.ErrIndexExists) {
		return false, fmt.Errorf("create index %s: %w: %w", r.index, domain.ErrBackendUnavailable, err)
	}

	attrs, err := r.store.IndexAttributes(ctx, r.index)
	if err != nil {
		return false, fmt.Errorf("inspect index %s: %w: %w", r.index, domain.ErrBackendUnavailable, err)
	}
	for _, want := range def.Attributes() {
		if !slices.Contains(attrs, want) {
			return false, fmt.Errorf("index %s lacks attribute %q: %w", r.index, want, domain.ErrSchemaConflict)
		}
	}
	return false, nil
}

// Index upserts the searchable projection of doc.
func (r *Redis) Index(ctx context.Context, doc *document.Document) error {
	p := result.ProjectionOf(doc)

	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata %s: %w", p.ID, err)
	}

	fields := map[string]string{
		fieldID:        p.ID,
		fieldTitle:     p.Title,
		fieldContent:   p.Content,
		fieldAuthor:    p.Author,
		fieldTags:      strings.Join(p.Tags, tagSeparator),
		fieldMetadata:  string(meta),
		fieldCreatedAt: strconv.FormatInt(p.CreatedAt.UnixMilli(), 10),
		fieldUpdatedAt: strconv.FormatInt(p.UpdatedAt.UnixMilli(), 10),
	}
	if err := r.store.HSet(ctx, r.prefix+p.ID, fields); err != nil {
		return fmt.Errorf("index %s: %w: %w", p.ID, domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Search runs the hybrid fuzzy + substring query. Took is measured around
// the FT.SEARCH round-trip.
func (r *Redis) Search(ctx context.Context, query string, size, offset int) (result.Page, error) {
	q := &db.TextQuery{
		IndexName:    r.index,
		Clauses:      textClauses(query),
		Offset:       offset,
		Limit:        size,
		ReturnFields: returnFields,
	}
	if len(q.Clauses) == 0 {
		return result.Page{}, nil
	}

	start := r.now()
	sr, err := r.store.SearchText(ctx, q)
	took := r.now().Sub(start)
	if err != nil {
		return result.Page{}, fmt.Errorf("keyword search: %w: %w", domain.ErrBackendUnavailable, err)
	}

	hits := make([]result.Result, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		p, err := decodeHashProjection(e.Fields)
		if err != nil {
			r.logger.Warn("Skipping malformed keyword hit", zap.String("key", e.Key), zap.Error(err))
			continue
		}
		hits = append(hits, result.New(p, e.Score, result.SourceKeyword))
	}

	return result.Page{Total: sr.Total, Hits: hits, Took: took}, nil
}

// Delete removes the entry for id and reports whether it existed.
func (r *Redis) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := r.store.Remove(ctx, r.prefix+id)
	if err != nil {
		return false, fmt.Errorf("unindex %s: %w: %w", id, domain.ErrBackendUnavailable, err)
	}
	return ok, nil
}

// Ping checks connectivity to the search engine.
func (r *Redis) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// textClauses builds: fuzzy(title|content) OR exact(author, tags) OR infix(title|content).
func textClauses(query string) []db.TextClause {
	terms := Terms(query)
	if len(terms) == 0 {
		return nil
	}

	fuzzy := make([]db.Term, 0, len(terms))
	for _, t := range terms {
		fuzzy = append(fuzzy, db.Term{Text: t, Distance: Fuzziness(t)})
	}

	clauses := []db.TextClause{
		{Kind: db.ClauseFuzzy, Fields: []string{fieldTitle, fieldContent}, Terms: fuzzy},
		{
			Kind:   db.ClauseExact,
			Fields: []string{fieldAuthor, fieldTags},
			Terms:  []db.Term{{Text: strings.Join(terms, " ")}},
			Weight: weightAuthor,
		},
	}

	if infix := infixTerms(terms); len(infix) > 0 {
		t := make([]db.Term, 0, len(infix))
		for _, s := range infix {
			t = append(t, db.Term{Text: s})
		}
		clauses = append(clauses, db.TextClause{
			Kind: db.ClauseInfix, Fields: []string{fieldTitle, fieldContent}, Terms: t,
		})
	}
	return clauses
}

func decodeHashProjection(f map[string]string) (result.Projection, error) {
	p := result.Projection{
		ID:      f[fieldID],
		Title:   f[fieldTitle],
		Content: f[fieldContent],
		Author:  f[fieldAuthor],
	}
	if tags := f[fieldTags]; tags != "" {
		p.Tags = strings.Split(tags, tagSeparator)
	}
	if raw := f[fieldMetadata]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Metadata); err != nil {
			return result.Projection{}, fmt.Errorf("metadata: %w", err)
		}
	}

	created, err := parseMillis(f[fieldCreatedAt])
	if err != nil {
		return result.Projection{}, fmt.Errorf("created_at: %w", err)
	}
	updated, err := parseMillis(f[fieldUpdatedAt])
	if err != nil {
		return result.Projection{}, fmt.Errorf("updated_at: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = created, updated

	if !p.Complete() {
		return result.Projection{}, errors.New("incomplete projection")
	}
	return p, nil
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}
