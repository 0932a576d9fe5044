// Package monitor streams turn events to websocket subscribers so operators
// can watch live sessions.
package monitor

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/decoy/internal/engine"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	defaultHistorySize      = 200
	defaultSubscriberBuffer = 32
	writeTimeout            = 5 * time.Second
)

// Config controls the hub.
type Config struct {
	HistorySize      int
	SubscriberBuffer int
	// AllowedOrigins are websocket origin patterns. Empty allows same-origin only.
	AllowedOrigins []string
}

type subscriber struct {
	sessionID string
	ch        chan engine.TurnEvent
}

func (s *subscriber) matches(ev engine.TurnEvent) bool {
	return s.sessionID == "" || s.sessionID == ev.SessionID
}

// Hub fans turn events out to subscribers. It implements engine.Observer
// and never blocks the publisher: a subscriber whose buffer is full is
// disconnected.
type Hub struct {
	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	recent  *ring
	bufSize int
	origins []string
	logger  *slog.Logger
}

var _ engine.Observer = (*Hub)(nil)

// NewHub creates a hub.
func NewHub(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = defaultSubscriberBuffer
	}
	return &Hub{
		subs:    make(map[*subscriber]struct{}),
		recent:  newRing(cfg.HistorySize),
		bufSize: cfg.SubscriberBuffer,
		origins: cfg.AllowedOrigins,
		logger:  logger,
	}
}

// OnTurn implements engine.Observer.
func (h *Hub) OnTurn(ev engine.TurnEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.recent.push(ev)
	for s := range h.subs {
		if !s.matches(ev) {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			h.logger.Warn("Dropping slow monitor subscriber", "session_id", s.sessionID)
			delete(h.subs, s)
			close(s.ch)
		}
	}
}

// Recent returns buffered events for sessionID, or all when empty.
func (h *Hub) Recent(sessionID string) []engine.TurnEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := &subscriber{sessionID: sessionID}
	return h.recent.snapshot(s.matches)
}

// Subscribers returns the number of connected subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// subscribe registers a subscriber and returns the backlog it should replay.
// Both happen under one lock so no event is missed or duplicated.
func (h *Hub) subscribe(sessionID string) (*subscriber, []engine.TurnEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := &subscriber{sessionID: sessionID, ch: make(chan engine.TurnEvent, h.bufSize)}
	h.subs[s] = struct{}{}
	return s, h.recent.snapshot(s.matches)
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.ch)
	}
}

// ServeHTTP upgrades to a websocket and streams events as JSON. The
// session_id query parameter narrows the stream to one session.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Error("Failed to accept monitor websocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "monitor closed"); closeErr != nil {
			h.logger.Debug("Failed to close monitor websocket", "error", closeErr)
		}
	}()

	h.logger.Info("Monitor subscriber connected", "session_id", sessionID, "ip", r.RemoteAddr)

	ctx := ws.CloseRead(r.Context())
	sub, backlog := h.subscribe(sessionID)
	defer h.unsubscribe(sub)

	for _, ev := range backlog {
		if err := h.write(ctx, ws, ev); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.ch:
			if !ok {
				_ = ws.Close(websocket.StatusPolicyViolation, "subscriber too slow")
				return
			}
			if err := h.write(ctx, ws, ev); err != nil {
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, ws *websocket.Conn, ev engine.TurnEvent) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, ws, ev); err != nil {
		h.logger.Debug("Monitor write failed", "session_id", ev.SessionID, "error", err)
		return err
	}
	return nil
}
