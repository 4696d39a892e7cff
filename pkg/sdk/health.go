package docvault

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
)

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            `json:"status"` // "ok", "degraded", "error"
	Checks map[string]string `json:"checks"` // component -> "ok"/"error"
}

// Healthy reports whether every component is up.
func (h HealthStatus) Healthy() bool { return h.Status == "ok" }

// Health checks the health of all server components. It needs no credentials.
// An unhealthy server answers 503 with a report; that report is returned
// together with the error.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	var out HealthStatus
	err := c.do(ctx, "health", http.MethodGet, "/health", nil, nil, &out)
	if err == nil {
		return out, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
		if jerr := json.Unmarshal([]byte(apiErr.Message), &out); jerr == nil && out.Status != "" {
			return out, err
		}
		return HealthStatus{Status: "error", Checks: map[string]string{}}, err
	}
	return HealthStatus{}, err
}
