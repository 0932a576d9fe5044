package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// HealthCheck probes an optional dependency.
type HealthCheck func(ctx context.Context) error

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store   SessionStore
	version string
	timeout time.Duration
	checks  map[string]HealthCheck
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(s SessionStore, version string) *HealthHandler {
	return &HealthHandler{
		store:   s,
		version: version,
		timeout: 5 * time.Second,
		checks:  make(map[string]HealthCheck),
	}
}

// AddCheck registers a dependency probe. A failing probe reports the service
// as degraded, since replies fall back to other providers.
func (h *HealthHandler) AddCheck(name string, check HealthCheck) {
	h.checks[name] = check
}

// Health returns the health status of the API and its store.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	checks := map[string]string{"api": "ok"}
	status := "healthy"
	statusCode := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		slog.Error("Health check failed", "error", err)
		status = "unhealthy"
		checks["store"] = "unreachable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}
	degraded := h.store.Degraded()
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			slog.Warn("Dependency health check failed", "check", name, "error", err)
			checks[name] = "unreachable"
			degraded = true
			continue
		}
		checks[name] = "ok"
	}
	if degraded && statusCode == http.StatusOK {
		status = "degraded"
	}

	JSON(w, statusCode, map[string]interface{}{
		"status":        status,
		"store_backend": h.store.Backend().Name(),
		"degraded":      h.store.Degraded(),
		"version":       h.version,
		"checks":        checks,
	})
}

// RegisterHealth registers the health check route.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/health", h.Health)
}
