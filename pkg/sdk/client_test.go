package docvault

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// recordedRequest is what the fake server saw.
type recordedRequest struct {
	method string
	path   string
	query  string
	auth   string
	ctype  string
	body   string
}

// recorder holds the last request seen by a fake server.
type recorder struct {
	mu   sync.Mutex
	last recordedRequest
}

func (r *recorder) get() recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// fakeServer answers every request with the given status and body and records the request.
func fakeServer(t *testing.T, status int, body string) (*httptest.Server, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.last = recordedRequest{
			method: r.Method,
			path:   r.URL.EscapedPath(),
			query:  r.URL.RawQuery,
			auth:   r.Header.Get("Authorization"),
			ctype:  r.Header.Get("Content-Type"),
			body:   string(raw),
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func newTestClient(t *testing.T, baseURL string, opts ...Option) *Client {
	t.Helper()
	c, err := New(baseURL, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8080", "ftp://host", "://bad"} {
		if _, err := New(u); err == nil {
			t.Errorf("New(%q): expected error", u)
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	c := newTestClient(t, "http://localhost:8080/")
	if c.http.Timeout != defaultTimeout {
		t.Errorf("timeout = %v, want %v", c.http.Timeout, defaultTimeout)
	}
	if c.userAgent != defaultUserAgent {
		t.Errorf("user agent = %q", c.userAgent)
	}
	if c.base.String() != "http://localhost:8080" {
		t.Errorf("base = %q, trailing slash should be trimmed", c.base.String())
	}
}

func TestClient_SendsBearerToken(t *testing.T) {
	srv, rec := fakeServer(t, http.StatusOK, `[]`)
	c := newTestClient(t, srv.URL, WithAPIKey("secret-key"), WithUserAgent("test-agent"))

	if _, err := c.Documents().List(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.get().auth != "Bearer secret-key" {
		t.Errorf("Authorization = %q", rec.get().auth)
	}
}

func TestClient_NoTokenNoHeader(t *testing.T) {
	srv, rec := fakeServer(t, http.StatusOK, `[]`)
	c := newTestClient(t, srv.URL)

	if _, err := c.Documents().List(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.get().auth != "" {
		t.Errorf("Authorization = %q, want empty", rec.get().auth)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
		code   string
	}{
		{"not found", 404, `{"code":"document_not_found","message":"no such document"}`, ErrDocumentNotFound, "document_not_found"},
		{"validation", 400, `{"code":"validation_failed","message":"title: is required"}`, ErrInvalidDocument, "validation_failed"},
		{"invalid query", 400, `{"code":"invalid_query","message":"empty"}`, ErrInvalidQuery, "invalid_query"},
		{"contention", 409, `{"code":"index_contention","message":"retry"}`, ErrIndexContention, "index_contention"},
		{"schema conflict", 409, `{"code":"schema_conflict","message":"width"}`, ErrSchemaConflict, "schema_conflict"},
		{"backend", 502, `{"code":"backend_unavailable","message":"down"}`, ErrBackendUnavailable, "backend_unavailable"},
		{"unauthorized", 401, `{"code":"unauthorized","message":"missing token"}`, ErrUnauthorized, "unauthorized"},
		{"forbidden", 403, `{"code":"forbidden","message":"role"}`, ErrForbidden, "forbidden"},
		{"plain text 429", 429, `slow down`, ErrRateLimited, ""},
		{"plain text 500", 500, `boom`, ErrUnexpectedResponse, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := fakeServer(t, tt.status, tt.body)
			c := newTestClient(t, srv.URL)

			_, err := c.Documents().Get(context.Background(), "doc-1")
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want errors.Is %v", err, tt.want)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if apiErr.Code != tt.code {
				t.Errorf("code = %q, want %q", apiErr.Code, tt.code)
			}
		})
	}
}

func TestClient_TransportError(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK, `[]`)
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, WithTimeout(time.Second))
	_, err := c.Documents().List(context.Background())
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Errorf("transport failure should not be an APIError: %v", err)
	}
}

func TestClient_CustomHTTPClient(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusOK, `[]`)
	hc := &http.Client{Timeout: 5 * time.Second}
	c := newTestClient(t, srv.URL, WithHTTPClient(hc))

	if c.http != hc {
		t.Error("custom HTTP client not used")
	}
}

func TestHealth(t *testing.T) {
	srv, rec := fakeServer(t, http.StatusOK, `{"status":"degraded","checks":{"record_store":"ok","keyword":"ok","embedding":"error"}}`)
	c := newTestClient(t, srv.URL)

	h, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.get().path != "/health" {
		t.Errorf("path = %q", rec.get().path)
	}
	if h.Status != "degraded" || h.Healthy() {
		t.Errorf("status = %q", h.Status)
	}
	if h.Checks["embedding"] != "error" {
		t.Errorf("checks = %v", h.Checks)
	}
}

func TestHealth_UnhealthyReturnsReport(t *testing.T) {
	srv, _ := fakeServer(t, http.StatusServiceUnavailable, `{"status":"error","checks":{"record_store":"error","keyword":"ok"}}`)
	c := newTestClient(t, srv.URL)

	h, err := c.Health(context.Background())
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if h.Status != "error" || h.Checks["record_store"] != "error" {
		t.Errorf("report = %+v", h)
	}
}

func TestObserver_MetricsAndLogs(t *testing.T) {
	reg := prometheus.NewRegistry()
	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	okSrv, _ := fakeServer(t, http.StatusOK, `[]`)
	c := newTestClient(t, okSrv.URL, WithPrometheus(reg), WithLogger(logger))
	if _, err := c.Documents().List(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	failSrv, _ := fakeServer(t, http.StatusNotFound, `{"code":"document_not_found","message":"nope"}`)
	// A second client on the same registerer reuses the collectors.
	c2 := newTestClient(t, failSrv.URL, WithPrometheus(reg), WithLogger(logger))
	_, _ = c2.Documents().Get(context.Background(), "missing")

	m, err := newSDKMetrics(reg)
	if err != nil {
		t.Fatalf("newSDKMetrics: %v", err)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("list", "ok")); got != 1 {
		t.Errorf("list ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("get", "document_not_found")); got != 1 {
		t.Errorf("get document_not_found = %v, want 1", got)
	}
	if !strings.Contains(logs.String(), "request failed") {
		t.Errorf("missing failure log line: %s", logs.String())
	}
}

func TestObserver_NilIsNoop(t *testing.T) {
	var o *observer
	o.observe("op", time.Now(), errors.New("x"))
}

func TestAPIError_Message(t *testing.T) {
	e := &APIError{StatusCode: 404, Code: "document_not_found", Message: "gone"}
	if !strings.Contains(e.Error(), "document_not_found") || !strings.Contains(e.Error(), "404") {
		t.Errorf("Error() = %q", e.Error())
	}
}

func decodeJSON(t *testing.T, s string, v any) {
	t.Helper()
	if err := json.Unmarshal([]byte(s), v); err != nil {
		t.Fatalf("decode %q: %v", s, err)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&APIError{StatusCode: 404, Code: "document_not_found"}, "document_not_found"},
		{&APIError{StatusCode: 502}, "http_502"},
		{errors.New("dial tcp: refused"), "transport"},
	}
	for _, tt := range tests {
		if got := outcome(tt.err); got != tt.want {
			t.Errorf("outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
