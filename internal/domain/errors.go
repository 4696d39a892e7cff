package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrInvalidDocument signals a document that fails validation.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrInvalidQuery signals an unusable search request.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrBackendUnavailable signals that a backing store could not be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrSchemaConflict signals that the search index exists with an incompatible mapping.
	ErrSchemaConflict = errors.New("schema conflict")
	// ErrMalformedPayload signals a stored record or search hit that cannot be decoded.
	ErrMalformedPayload = errors.New("malformed payload")
	// ErrIndexContention signals that the enumeration index kept losing compare-and-swap races.
	ErrIndexContention = errors.New("enumeration index contention")

	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

// ValidationError wraps ErrInvalidDocument with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidDocument.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidDocument }

// NewValidationError creates a document validation error.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
