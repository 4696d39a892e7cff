package document

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kailas-cloud/docvault/internal/domain"
	domdoc "github.com/kailas-cloud/docvault/internal/domain/document"
)

// record is the JSON layout of a document in the record store.
type record struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Content   string         `json:"content"`
	Author    string         `json:"author,omitempty"`
	Tags      []string       `json:"tags,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Deleted   bool           `json:"deleted"`
}

func encodeRecord(doc *domdoc.Document) ([]byte, error) {
	data, err := json.Marshal(record{
		ID:        doc.ID(),
		Title:     doc.Title(),
		Content:   doc.Content(),
		Author:    doc.Author(),
		Tags:      doc.Tags(),
		Metadata:  doc.Metadata(),
		CreatedBy: doc.CreatedBy(),
		CreatedAt: doc.CreatedAt(),
		UpdatedAt: doc.UpdatedAt(),
		Deleted:   doc.Deleted(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal record %s: %w", doc.ID(), err)
	}
	return data, nil
}

// decodeRecord hydrates a stored record. The id under which it was read must match.
func decodeRecord(id string, raw []byte) (domdoc.Document, error) {
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return domdoc.Document{}, fmt.Errorf("record %s: %w: %w", id, domain.ErrMalformedPayload, err)
	}
	if r.ID != id {
		return domdoc.Document{}, fmt.Errorf("record %s: %w: stored id %q", id, domain.ErrMalformedPayload, r.ID)
	}
	return domdoc.Reconstruct(
		r.ID, r.Title, r.Content, r.Author, r.Tags, r.Metadata,
		r.CreatedBy, r.CreatedAt, r.UpdatedAt, r.Deleted,
	), nil
}
