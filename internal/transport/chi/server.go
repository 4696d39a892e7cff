// Package chi is the HTTP transport: routing, authentication, and the JSON API.
package chi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docvault/internal/domain"
	domdoc "github.com/kailas-cloud/docvault/internal/domain/document"
	"github.com/kailas-cloud/docvault/internal/domain/document/patch"
	"github.com/kailas-cloud/docvault/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/docvault/internal/logger"
	healthuc "github.com/kailas-cloud/docvault/internal/usecase/health"
)

const maxBodyBytes = 1 << 20

// DocumentService is the document use case surface the API exposes.
type DocumentService interface {
	Create(ctx context.Context, draft domdoc.Draft, creator string) (domdoc.Document, error)
	Get(ctx context.Context, id string) (domdoc.Document, error)
	List(ctx context.Context) ([]string, error)
	Search(ctx context.Context, query string, size, offset int) (result.Page, error)
	Update(ctx context.Context, id string, p patch.Patch) (domdoc.Document, error)
	ToggleDelete(ctx context.Context, id string) (domdoc.Document, error)
	Unindex(ctx context.Context, id string) (bool, error)
}

// HealthService reports component health.
type HealthService interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server holds the HTTP handlers.
type Server struct {
	documents     DocumentService
	health        HealthService
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(documents DocumentService, health HealthService, logger *zap.Logger) *Server {
	s := &Server{documents: documents, health: health, logger: logger}
	s.errorHandlers = []errorHandler{
		validationHandler,
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, ErrorCodeInvalidQuery),
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, ErrorCodeDocumentNotFound),
		sentinelHandler(domain.ErrIndexContention, http.StatusConflict, ErrorCodeIndexContention),
		sentinelHandler(domain.ErrSchemaConflict, http.StatusConflict, ErrorCodeSchemaConflict),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, ErrorCodeRateLimited),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusBadGateway, ErrorCodeBackendUnavailable),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, ErrorCodeBackendUnavailable),
	}
	return s
}

// CreateDocument handles POST /documents.
func (s *Server) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	creator := ""
	if p, ok := PrincipalFromContext(r.Context()); ok {
		creator = p.Subject
	}

	doc, err := s.documents.Create(r.Context(), domdoc.Draft{
		ID:       req.ID,
		Title:    req.Title,
		Content:  req.Content,
		Author:   req.Author,
		Tags:     req.Tags,
		Metadata: req.Metadata,
	}, creator)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/documents/"+doc.ID())
	writeJSON(w, http.StatusCreated, documentToAPI(&doc))
}

// ListDocuments handles GET /documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	ids, err := s.documents.List(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, ids)
}

// SearchDocuments handles GET /documents/search?q=&limit=&offset=.
func (s *Server) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	var (
		q      string
		limit  int
		offset int
	)
	query := r.URL.Query()
	if err := runtime.BindQueryParameter("form", true, true, "q", query, &q); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter q")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "limit", query, &limit); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter limit")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", query, &offset); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid format for parameter offset")
		return
	}

	page, err := s.documents.Search(r.Context(), q, limit, offset)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pageToAPI(page))
}

// GetDocument handles GET /documents/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToAPI(&doc))
}

// PatchDocument handles PATCH /documents/{id}.
func (s *Server) PatchDocument(w http.ResponseWriter, r *http.Request) {
	var req PatchDocumentRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	p, err := patch.New(req.Title, req.Content, req.Author, req.Tags, req.Metadata)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
		return
	}

	doc, err := s.documents.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToAPI(&doc))
}

// ToggleDelete handles POST /documents/{id}/toggle-delete.
func (s *Server) ToggleDelete(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.ToggleDelete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToAPI(&doc))
}

// UnindexDocument handles DELETE /documents/{id}/index.
func (s *Server) UnindexDocument(w http.ResponseWriter, r *http.Request) {
	removed, err := s.documents.Unindex(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, UnindexResponse{Removed: removed})
}

// HealthCheck handles GET /health. Unhealthy reports answer 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// validationHandler reports the offending field of a document validation error.
func validationHandler(w http.ResponseWriter, err error) bool {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, ve.Error())
		return true
	}
	if errors.Is(err, domain.ErrInvalidDocument) {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, domain.ErrInvalidDocument.Error())
		return true
	}
	return false
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// The client sees the sentinel text only, never the wrapped detail.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, sentinel.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContext(r.Context())
	for _, h := range s.errorHandlers {
		if h(w, err) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternalError, "internal error")
}

// notFound answers unknown routes in the API error format.
func notFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, ErrorCodeNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
}
