// Package transcript writes conversation turns to NDJSON files, one per
// session plus an optional combined file. Writes happen on a background
// goroutine so turns never wait on disk.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/engine"
)

const defaultQueueSize = 256

var errClosed = errors.New("transcript logger closed")

// Config controls the transcript logger.
type Config struct {
	Enabled bool
	Dir     string
	// GlobalFile, when set, receives every record in addition to the
	// per-session file.
	GlobalFile string
	QueueSize  int
}

// Record is one line of a transcript file.
type Record struct {
	Timestamp  time.Time `json:"timestamp"`
	SessionID  string    `json:"session_id"`
	Channel    string    `json:"channel,omitempty"`
	TurnNumber int       `json:"turn_number"`
	Direction  string    `json:"direction"`
	EventType  string    `json:"event_type"`
	Provider   string    `json:"provider,omitempty"`
	RiskScore  float64   `json:"risk_score"`
	ContentRaw string    `json:"content_raw"`
	Content    string    `json:"content"`
}

// Logger is an engine.Observer that appends turns to transcript files.
type Logger struct {
	cfg    Config
	queue  chan Record
	done   chan struct{}
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	global *os.File
}

var _ engine.Observer = (*Logger)(nil)

// New starts a transcript logger. A disabled config returns a logger that
// drops everything.
func New(cfg Config, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	l := &Logger{
		cfg:    cfg,
		queue:  make(chan Record, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	if !cfg.Enabled {
		l.closed = true
		close(l.done)
		return l, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	if cfg.GlobalFile != "" {
		f, err := os.OpenFile(cfg.GlobalFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, fmt.Errorf("open global transcript: %w", err)
		}
		l.global = f
	}

	go l.run()
	return l, nil
}

// OnTurn implements engine.Observer. It enqueues the inbound message and
// the reply as two records.
func (l *Logger) OnTurn(ev engine.TurnEvent) {
	in := Record{
		Timestamp:  ev.Timestamp,
		SessionID:  ev.SessionID,
		Channel:    ev.Channel,
		TurnNumber: ev.TurnNumber,
		Direction:  "inbound",
		EventType:  "scammer_message",
		RiskScore:  ev.RiskScore,
		ContentRaw: ev.Inbound,
	}
	out := in
	out.Direction = "outbound"
	out.EventType = "decoy_reply"
	out.Provider = ev.Provider
	out.ContentRaw = ev.Reply
	if !ev.Engaged {
		out.EventType = "neutral_reply"
	}

	l.Log(in)
	l.Log(out)
}

// Log enqueues a record. Records are dropped with a warning when the queue is full.
func (l *Logger) Log(rec Record) {
	if err := l.enqueue(rec); err != nil {
		l.logger.Warn("Dropping transcript record",
			"session_id", rec.SessionID,
			"turn", rec.TurnNumber,
			"error", err)
	}
}

func (l *Logger) enqueue(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errClosed
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	rec.Content = cleanForReadability(rec.ContentRaw)
	select {
	case l.queue <- rec:
		return nil
	default:
		return errors.New("transcript queue full")
	}
}

// Close flushes queued records and closes open files.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.done
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	if l.global != nil {
		return l.global.Close()
	}
	return nil
}

func (l *Logger) run() {
	defer close(l.done)
	for rec := range l.queue {
		if err := l.write(rec); err != nil {
			l.logger.Warn("Failed to write transcript record",
				"session_id", rec.SessionID,
				"error", err)
		}
	}
}

func (l *Logger) write(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal transcript record: %w", err)
	}
	line = append(line, '\n')

	path := l.PathFor(rec.SessionID)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	_, werr := f.Write(line)
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("write transcript: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("close transcript: %w", cerr)
	}

	if l.global != nil {
		if _, err := l.global.Write(line); err != nil {
			return fmt.Errorf("write global transcript: %w", err)
		}
	}
	return nil
}

// PathFor returns the transcript file for a session.
func (l *Logger) PathFor(sessionID string) string {
	return filepath.Join(l.cfg.Dir, domain.FileName(sessionID)+".ndjson")
}

var (
	ansiPattern  = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
	spacePattern = regexp.MustCompile(`[ \t]+`)
)

// cleanForReadability strips escape sequences and control characters.
func cleanForReadability(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if r == '\n' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
