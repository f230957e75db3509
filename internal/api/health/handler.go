package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"crimewatch/pkg/logger"
)

// Checker checks one dependency. The adapter clients satisfy it.
type Checker interface {
	Health(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Health(ctx context.Context) error { return f(ctx) }

// Handler provides health check endpoints
type Handler struct {
	log         *logger.Logger
	checks      map[string]Checker
	startTime   time.Time
	serviceName string
	version     string
}

// New creates a new health check handler. Components that are not
// configured should simply be left out of checks.
func New(log *logger.Logger, checks map[string]Checker, serviceName, version string) *Handler {
	return &Handler{
		log:         log.With("component", "health"),
		checks:      checks,
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string                     `json:"status"` // "healthy", "degraded", "unhealthy"
	Service   string                     `json:"service"`
	Version   string                     `json:"version"`
	Uptime    string                     `json:"uptime"`
	Timestamp string                     `json:"timestamp"`
	Checks    map[string]ComponentHealth `json:"checks"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 OK if service is running
// Used by Kubernetes liveness checks
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness fails unless every component is healthy
// Used by Kubernetes readiness checks
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status, healthy := h.run(ctx)
	code := http.StatusOK
	if healthy < len(status.Checks) {
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", status.Checks)
	}
	writeJSON(w, code, status)
}

// HandleHealth returns detailed health status. Partial failure is degraded, not down.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status, healthy := h.run(ctx)
	code := http.StatusOK
	switch {
	case len(status.Checks) > 0 && healthy == 0:
		status.Status = "unhealthy"
		code = http.StatusServiceUnavailable
	case healthy < len(status.Checks):
		status.Status = "degraded"
	}
	writeJSON(w, code, status)
}

func (h *Handler) run(ctx context.Context) (HealthStatus, int) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := make(map[string]ComponentHealth, len(names))
	healthy := 0
	for _, name := range names {
		c := h.check(ctx, name, h.checks[name])
		if c.Status == "healthy" {
			healthy++
		}
		checks[name] = c
	}

	return HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    checks,
	}, healthy
}

func (h *Handler) check(ctx context.Context, name string, c Checker) ComponentHealth {
	start := time.Now()
	err := c.Health(ctx)
	elapsed := time.Since(start)

	if err != nil {
		h.log.Warnw("Health check failed", "component", name, "error", err, "elapsed", elapsed)
		return ComponentHealth{
			Status:       "unhealthy",
			ResponseTime: elapsed.String(),
			Error:        err.Error(),
		}
	}
	return ComponentHealth{
		Status:       "healthy",
		ResponseTime: elapsed.String(),
	}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
