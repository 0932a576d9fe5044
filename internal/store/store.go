// Package store persists decoy sessions as JSON documents in a key/value backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/metrics"
)

// Defaults.
const (
	DefaultKeyPrefix = "honeypot:session:"
	DefaultTTL       = time.Hour
)

// Config controls key naming and expiry.
type Config struct {
	KeyPrefix   string
	TTL         time.Duration
	PingTimeout time.Duration
}

// envelope is the persisted document.
type envelope struct {
	SavedAt time.Time       `json:"saved_at"`
	Session *domain.Session `json:"session"`
}

// Store saves and loads sessions. When the configured backend is unreachable
// at construction it runs on a MemoryBackend and reports Degraded.
type Store struct {
	backend  Backend
	prefix   string
	ttl      time.Duration
	degraded atomic.Bool
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New pings primary and falls back to memory when it is nil or unreachable.
func New(ctx context.Context, cfg Config, primary Backend, logger *slog.Logger, m *metrics.Metrics) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Second
	}

	s := &Store{
		prefix:  cfg.KeyPrefix,
		ttl:     cfg.TTL,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}

	if primary == nil {
		s.backend = NewMemoryBackend()
		logger.Info("Session store using in-memory backend")
		return s
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := primary.Ping(pingCtx); err != nil {
		logger.Warn("Session store backend unreachable, falling back to memory",
			"backend", primary.Name(), "error", err)
		if closeErr := primary.Close(); closeErr != nil {
			logger.Warn("failed to close unreachable backend", "error", closeErr)
		}
		s.backend = NewMemoryBackend()
		s.degraded.Store(true)
		m.StoreDegraded(true)
		return s
	}

	s.backend = primary
	logger.Info("Session store connected", "backend", primary.Name(), "ttl", cfg.TTL)
	return s
}

// Key returns the namespaced key for a session ID.
func (s *Store) Key(id string) string {
	return s.prefix + id
}

// Backend returns the active backend.
func (s *Store) Backend() Backend {
	return s.backend
}

// Degraded reports whether the store fell back to memory.
func (s *Store) Degraded() bool {
	return s.degraded.Load()
}

// Save writes the whole session with a fresh TTL.
func (s *Store) Save(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(envelope{SavedAt: s.now().UTC(), Session: sess})
	if err != nil {
		s.metrics.StoreError("save")
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.backend.Set(ctx, s.Key(sess.ID), data, s.ttl); err != nil {
		s.metrics.StoreError("save")
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	return nil
}

// Load returns the stored session. A miss or an undecodable record both
// report false; the caller starts a new session.
func (s *Store) Load(ctx context.Context, id string) (*domain.Session, bool) {
	data, err := s.backend.Get(ctx, s.Key(id))
	if errors.Is(err, ErrNotFound) {
		s.logger.Info("No stored session, starting new", "session_id", id)
		return nil, false
	}
	if err != nil {
		s.metrics.StoreError("load")
		s.logger.Error("Failed to load session", "session_id", id, "error", err)
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Session == nil {
		s.metrics.StoreError("decode")
		s.logger.Warn("Discarding undecodable session record", "session_id", id, "error", err)
		return nil, false
	}
	env.Session.Intel.Ensure()
	return env.Session, true
}

// Delete removes a session. Failures are logged.
func (s *Store) Delete(ctx context.Context, id string) {
	if err := s.backend.Delete(ctx, s.Key(id)); err != nil {
		s.metrics.StoreError("delete")
		s.logger.Error("Failed to delete session", "session_id", id, "error", err)
	}
}

// ExtendExpiry resets a session's TTL. Failures are logged.
func (s *Store) ExtendExpiry(ctx context.Context, id string) {
	if err := s.backend.Expire(ctx, s.Key(id), s.ttl); err != nil {
		s.metrics.StoreError("expire")
		s.logger.Warn("Failed to extend session expiry", "session_id", id, "error", err)
	}
}

// Ping checks the active backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close releases the active backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
