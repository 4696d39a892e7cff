package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/docvault/internal/db"
	"github.com/kailas-cloud/docvault/internal/domain"
	domdoc "github.com/kailas-cloud/docvault/internal/domain/document"
	"github.com/kailas-cloud/docvault/internal/domain/document/patch"
)

// store is the consumer interface for document records (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	CompareAndSwap(ctx context.Context, key string, expected, value []byte) (bool, error)
}

// Option configures a Repo.
type Option func(*Repo)

// WithRetryPolicy overrides the compare-and-swap retry bounds.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(r *Repo) { r.policy = p }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Repo) { r.now = now }
}

// Retry targets reported to the retry observer.
const (
	RetryTargetEnumeration = "enumeration"
	RetryTargetRecord      = "record"
)

// WithRetryObserver registers a callback invoked on every lost compare-and-swap race.
func WithRetryObserver(fn func(target string)) Option {
	return func(r *Repo) { r.onRetry = fn }
}

// Repo implements usecase/document.Repository over a record store.
type Repo struct {
	store   store
	prefix  string
	policy  RetryPolicy
	now     func() time.Time
	onRetry func(target string)
	enum    *Enumeration
}

// New creates a document repository. Keys are <prefix>doc:<id> and <prefix>docs:index.
func New(s store, prefix string, opts ...Option) *Repo {
	r := &Repo{
		store:  s,
		prefix: prefix,
		policy: DefaultRetryPolicy(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	if r.policy.MaxAttempts <= 0 {
		r.policy.MaxAttempts = DefaultRetryPolicy().MaxAttempts
	}
	r.enum = &Enumeration{store: s, key: prefix + "docs:index", policy: r.policy}
	if r.onRetry != nil {
		r.enum.onRetry = func() { r.onRetry(RetryTargetEnumeration) }
	}
	return r
}

// Create stamps a new document, writes its record, then appends its id to the enumeration.
// A failed append leaves the record in place; the document exists but is not listed.
func (r *Repo) Create(ctx context.Context, draft domdoc.Draft, creator string) (domdoc.Document, error) {
	doc, err := domdoc.New(draft, creator, r.now())
	if err != nil {
		return domdoc.Document{}, err
	}

	data, err := encodeRecord(&doc)
	if err != nil {
		return domdoc.Document{}, err
	}
	key := r.docKey(doc.ID())
	if err := r.store.Set(ctx, key, data); err != nil {
		return domdoc.Document{}, fmt.Errorf("write record %s: %w: %w", doc.ID(), domain.ErrBackendUnavailable, err)
	}

	if err := r.enum.Append(ctx, doc.ID()); err != nil {
		return domdoc.Document{}, err
	}
	return doc, nil
}

// Get returns a document by id. found is false when no record exists.
func (r *Repo) Get(ctx context.Context, id string) (domdoc.Document, bool, error) {
	doc, _, found, err := r.load(ctx, id)
	return doc, found, err
}

// List returns the raw enumeration: insertion order, duplicates kept.
func (r *Repo) List(ctx context.Context) ([]string, error) {
	return r.enum.Load(ctx)
}

// Update applies a patch to an existing record. The id is not re-appended to the enumeration.
func (r *Repo) Update(ctx context.Context, id string, p patch.Patch) (domdoc.Document, bool, error) {
	return r.mutate(ctx, id, func(d *domdoc.Document) domdoc.Document {
		return d.Apply(p, r.now())
	})
}

// ToggleDelete flips the soft-delete flag and nothing else.
func (r *Repo) ToggleDelete(ctx context.Context, id string) (domdoc.Document, bool, error) {
	return r.mutate(ctx, id, func(d *domdoc.Document) domdoc.Document {
		return d.Toggled()
	})
}

// mutate runs a compare-and-swap cycle on a single record.
func (r *Repo) mutate(
	ctx context.Context, id string, change func(*domdoc.Document) domdoc.Document,
) (domdoc.Document, bool, error) {
	key := r.docKey(id)
	for attempt := range r.policy.MaxAttempts {
		cur, raw, found, err := r.load(ctx, id)
		if err != nil || !found {
			return domdoc.Document{}, found, err
		}

		next := change(&cur)
		data, err := encodeRecord(&next)
		if err != nil {
			return domdoc.Document{}, true, err
		}

		swapped, err := r.store.CompareAndSwap(ctx, key, raw, data)
		if err != nil {
			return domdoc.Document{}, true, fmt.Errorf("write record %s: %w: %w", id, domain.ErrBackendUnavailable, err)
		}
		if swapped {
			return next, true, nil
		}

		if r.onRetry != nil {
			r.onRetry(RetryTargetRecord)
		}
		if err := r.policy.wait(ctx, attempt); err != nil {
			return domdoc.Document{}, true, fmt.Errorf("update %s: %w", id, err)
		}
	}
	return domdoc.Document{}, true, fmt.Errorf("update %s after %d attempts: %w", id, r.policy.MaxAttempts, domain.ErrIndexContention)
}

func (r *Repo) load(ctx context.Context, id string) (domdoc.Document, []byte, bool, error) {
	raw, err := r.store.Get(ctx, r.docKey(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domdoc.Document{}, nil, false, nil
		}
		return domdoc.Document{}, nil, false, fmt.Errorf("read record %s: %w: %w", id, domain.ErrBackendUnavailable, err)
	}
	doc, err := decodeRecord(id, raw)
	if err != nil {
		return domdoc.Document{}, nil, true, err
	}
	return doc, raw, true, nil
}

func (r *Repo) docKey(id string) string {
	return r.prefix + "doc:" + id
}
