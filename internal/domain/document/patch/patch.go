package patch

import (
	"fmt"

	"github.com/kailas-cloud/docvault/internal/domain"
)

// MaxContentSize is the maximum allowed content size in bytes.
const MaxContentSize = 163840 // 160KB

// Patch is a partial document update.
// Nil fields are unchanged. A nil value in Metadata means delete that key.
type Patch struct {
	title    *string
	content  *string
	author   *string
	tags     *[]string
	metadata map[string]any
}

// New validates and creates a Patch. At least one field must be provided.
func New(title, content, author *string, tags *[]string, metadata map[string]any) (Patch, error) {
	if title == nil && content == nil && author == nil && tags == nil && len(metadata) == 0 {
		return Patch{}, domain.NewValidationError("patch", "needs at least one field")
	}
	if title != nil && *title == "" {
		return Patch{}, domain.NewValidationError("title", "must not be empty")
	}
	if content != nil {
		if *content == "" {
			return Patch{}, domain.NewValidationError("content", "must not be empty")
		}
		if len(*content) > MaxContentSize {
			return Patch{}, domain.NewValidationError("content", fmt.Sprintf("too large (max %d bytes)", MaxContentSize))
		}
	}
	return Patch{title: title, content: content, author: author, tags: tags, metadata: metadata}, nil
}

// Title returns the new title, or nil if unchanged.
func (p Patch) Title() *string { return p.title }

// Content returns the new content, or nil if unchanged.
func (p Patch) Content() *string { return p.content }

// Author returns the new author, or nil if unchanged.
func (p Patch) Author() *string { return p.author }

// Tags returns the replacement tag list, or nil if unchanged.
func (p Patch) Tags() *[]string { return p.tags }

// Metadata returns metadata updates (nil value = delete).
func (p Patch) Metadata() map[string]any { return p.metadata }

