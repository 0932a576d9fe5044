// Package api provides HTTP handlers for the decoy API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/engine"
	"github.com/ashureev/decoy/internal/store"
	"github.com/go-chi/chi/v5"
)

// defaultMaxRequestBodySize is the default maximum allowed request body size (1MB).
const defaultMaxRequestBodySize = 1 << 20

// Processor runs one turn for an inbound message.
type Processor interface {
	Process(ctx context.Context, msg engine.InboundMessage) (engine.Reply, error)
}

// SessionStore is the subset of the session store used by the API.
type SessionStore interface {
	Load(ctx context.Context, id string) (*domain.Session, bool)
	Delete(ctx context.Context, id string)
	Ping(ctx context.Context) error
	Degraded() bool
	Backend() store.Backend
}

// Handler serves the message and session endpoints.
type Handler struct {
	engine  Processor
	store   SessionStore
	limiter *SessionLimiter
	maxBody int64
	logger  *slog.Logger
}

// NewHandler creates a Handler. limiter may be nil to disable rate limiting.
func NewHandler(p Processor, s SessionStore, limiter *SessionLimiter, maxBody int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBody <= 0 {
		maxBody = defaultMaxRequestBodySize
	}
	return &Handler{
		engine:  p,
		store:   s,
		limiter: limiter,
		maxBody: maxBody,
		logger:  logger,
	}
}

// RegisterRoutes registers the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/honeypot/message", h.HandleMessage)
		r.Get("/sessions/{sessionID}", h.GetSession)
		r.Delete("/sessions/{sessionID}", h.DeleteSession)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
