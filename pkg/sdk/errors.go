package docvault

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/kailas-cloud/docvault/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrDocumentNotFound   = domain.ErrDocumentNotFound
	ErrInvalidDocument    = domain.ErrInvalidDocument
	ErrInvalidQuery       = domain.ErrInvalidQuery
	ErrIndexContention    = domain.ErrIndexContention
	ErrSchemaConflict     = domain.ErrSchemaConflict
	ErrRateLimited        = domain.ErrRateLimited
	ErrBackendUnavailable = domain.ErrBackendUnavailable
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("docvault: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("docvault: %s (http %d): %s", e.Code, e.StatusCode, e.Message)
}

// Unwrap maps the error code to a sentinel.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "document_not_found":
		return ErrDocumentNotFound
	case "validation_failed":
		return ErrInvalidDocument
	case "invalid_query":
		return ErrInvalidQuery
	case "index_contention":
		return ErrIndexContention
	case "schema_conflict":
		return ErrSchemaConflict
	case "rate_limited":
		return ErrRateLimited
	case "backend_unavailable":
		return ErrBackendUnavailable
	case "unauthorized":
		return ErrUnauthorized
	case "forbidden":
		return ErrForbidden
	}
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return ErrUnexpectedResponse
}
