package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Uptime  int64             `json:"uptime"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// Check tests one dependency.
type Check func(ctx context.Context) error

// HealthHandler reports liveness. A failing check turns the status into
// "degraded" and the response into 503.
func HealthHandler(version string, started time.Time, checks map[string]Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Version: version,
			Uptime:  int64(time.Since(started).Seconds()),
		}
		status := http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, check := range checks {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(checks))
			}
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		SendJSON(w, status, resp)
	}
}
