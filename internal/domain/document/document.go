package document

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"time"

	"github.com/kailas-cloud/docvault/internal/domain"
	"github.com/kailas-cloud/docvault/internal/domain/document/patch"
)

var (
	idRegex     = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	reservedIDs = map[string]bool{"search": true}
)

// MaxContentSize is the maximum document content size in bytes.
const MaxContentSize = 163840 // 160KB

// MaxIDLength is the maximum document identifier length.
const MaxIDLength = 256

// Draft carries caller-supplied fields of a document that does not exist yet.
type Draft struct {
	ID       string
	Title    string
	Content  string
	Author   string
	Tags     []string
	Metadata map[string]any
}

// Document is the document aggregate (immutable value object).
type Document struct {
	id        string
	title     string
	content   string
	author    string
	tags      []string
	metadata  map[string]any
	createdBy string
	createdAt time.Time
	updatedAt time.Time
	deleted   bool
}

// New validates a draft and stamps it as a freshly created document.
// ID: ^[a-zA-Z0-9_-]+$, 1-256 chars, not reserved. Title and content are required.
func New(d Draft, creator string, now time.Time) (Document, error) {
	if err := ValidateID(d.ID); err != nil {
		return Document{}, err
	}
	if d.Title == "" {
		return Document{}, domain.NewValidationError("title", "is required")
	}
	if err := validateContent(d.Content); err != nil {
		return Document{}, err
	}

	now = now.UTC()
	return Document{
		id:        d.ID,
		title:     d.Title,
		content:   d.Content,
		author:    d.Author,
		tags:      slices.Clone(d.Tags),
		metadata:  maps.Clone(d.Metadata),
		createdBy: creator,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(
	id, title, content, author string, tags []string, metadata map[string]any,
	createdBy string, createdAt, updatedAt time.Time, deleted bool,
) Document {
	return Document{
		id: id, title: title, content: content, author: author,
		tags: tags, metadata: metadata, createdBy: createdBy,
		createdAt: createdAt, updatedAt: updatedAt, deleted: deleted,
	}
}

// ValidateID checks identifier format and reserved names.
func ValidateID(id string) error {
	if id == "" {
		return domain.NewValidationError("id", "is required")
	}
	if len(id) > MaxIDLength {
		return domain.NewValidationError("id", fmt.Sprintf("too long (max %d)", MaxIDLength))
	}
	if !idRegex.MatchString(id) {
		return domain.NewValidationError("id", "must be alphanumeric with underscores and hyphens")
	}
	if reservedIDs[id] {
		return domain.NewValidationError("id", fmt.Sprintf("%q is reserved", id))
	}
	return nil
}

func validateContent(content string) error {
	if content == "" {
		return domain.NewValidationError("content", "is required")
	}
	if len(content) > MaxContentSize {
		return domain.NewValidationError("content", fmt.Sprintf("too large (max %d bytes)", MaxContentSize))
	}
	return nil
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Title returns the document title.
func (d *Document) Title() string { return d.title }

// Content returns the document text content.
func (d *Document) Content() string { return d.content }

// Author returns the document author.
func (d *Document) Author() string { return d.author }

// Tags returns the ordered tags.
func (d *Document) Tags() []string { return d.tags }

// Metadata returns the free-form metadata map.
func (d *Document) Metadata() map[string]any { return d.metadata }

// CreatedBy returns the identity that created the document.
func (d *Document) CreatedBy() string { return d.createdBy }

// CreatedAt returns the creation timestamp.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// UpdatedAt returns the last content modification timestamp.
func (d *Document) UpdatedAt() time.Time { return d.updatedAt }

// Deleted reports the soft-delete flag.
func (d *Document) Deleted() bool { return d.deleted }

// EmbeddingText is the text fed to the embedding model.
func (d *Document) EmbeddingText() string { return d.title + "\n" + d.content }

// Toggled returns a copy with the soft-delete flag flipped. UpdatedAt is left as is.
func (d *Document) Toggled() Document {
	c := *d
	c.deleted = !d.deleted
	return c
}

// Apply returns a copy with the patch applied. Identity, creator, and creation time are kept;
// UpdatedAt becomes now, clamped so it never precedes CreatedAt.
func (d *Document) Apply(p patch.Patch, now time.Time) Document {
	c := *d
	if t := p.Title(); t != nil {
		c.title = *t
	}
	if v := p.Content(); v != nil {
		c.content = *v
	}
	if a := p.Author(); a != nil {
		c.author = *a
	}
	if tags := p.Tags(); tags != nil {
		c.tags = slices.Clone(*tags)
	}
	if md := p.Metadata(); len(md) > 0 {
		merged := maps.Clone(d.metadata)
		if merged == nil {
			merged = make(map[string]any, len(md))
		}
		for k, v := range md {
			if v == nil {
				delete(merged, k)
				continue
			}
			merged[k] = v
		}
		c.metadata = merged
	}

	now = now.UTC()
	if now.Before(d.createdAt) {
		now = d.createdAt
	}
	c.updatedAt = now
	return c
}
