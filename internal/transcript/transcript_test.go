package transcript

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/decoy/internal/engine"
)

func TestLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	global := filepath.Join(dir, "all.ndjson")
	logger, err := New(Config{
		Enabled:    true,
		Dir:        dir,
		GlobalFile: global,
		QueueSize:  16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.OnTurn(engine.TurnEvent{
		SessionID:  "sess-1",
		Channel:    "sms",
		TurnNumber: 1,
		Inbound:    "Your account is \x1b[31mblocked\x1b[0m",
		Reply:      "Which account beta?",
		Provider:   "groq",
		Engaged:    true,
		RiskScore:  0.6,
		Timestamp:  time.Now(),
	})

	path := filepath.Join(dir, "sess-1.ndjson")
	lines := waitForLogLines(t, path, 2)

	var in, out Record
	if err := json.Unmarshal([]byte(lines[0]), &in); err != nil {
		t.Fatalf("failed to unmarshal inbound line: %v", err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &out); err != nil {
		t.Fatalf("failed to unmarshal outbound line: %v", err)
	}
	if in.Direction != "inbound" || in.Content != "Your account is blocked" {
		t.Fatalf("unexpected inbound record: %+v", in)
	}
	if out.EventType != "decoy_reply" || out.Provider != "groq" || out.ContentRaw != "Which account beta?" {
		t.Fatalf("unexpected outbound record: %+v", out)
	}

	if got := waitForLogLines(t, global, 2); len(got) != 2 {
		t.Fatalf("expected 2 global lines, got %d", len(got))
	}
}

func TestLoggerNeutralReplyEventType(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{Enabled: true, Dir: dir}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.OnTurn(engine.TurnEvent{SessionID: "../evil", TurnNumber: 1, Inbound: "hi", Reply: "what?"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	path := logger.PathFor("../evil")
	if filepath.Dir(path) != dir || !strings.HasPrefix(filepath.Base(path), "___evil-") {
		t.Fatalf("unexpected transcript path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected sanitized transcript file: %v", err)
	}
	if !strings.Contains(string(data), `"event_type":"neutral_reply"`) {
		t.Fatalf("expected neutral reply record: %s", data)
	}
}

func TestLoggerDisabledDropsRecords(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "never")
	logger, err := New(Config{Enabled: false, Dir: dir}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.OnTurn(engine.TurnEvent{SessionID: "s", Inbound: "x"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected no transcript dir, got %v", err)
	}
}

func TestLogAfterCloseIsDropped(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{Enabled: true, Dir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := logger.enqueue(Record{SessionID: "late"}); err == nil {
		t.Fatal("expected enqueue after close to fail")
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestCleanForReadabilityStripsANSI(t *testing.T) {
	t.Parallel()

	raw := "\x1b[31merror\x1b[0m\tplain"
	clean := cleanForReadability(raw)
	if strings.Contains(clean, "\x1b[31m") {
		t.Fatalf("expected ANSI sequence to be stripped: %q", clean)
	}
	if clean != "error plain" {
		t.Fatalf("expected readable text to remain: %q", clean)
	}
}

func waitForLogLines(t *testing.T, path string, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) >= n {
				return lines
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return nil
}

func TestPathForDistinguishesSanitizedIDs(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{Enabled: false, Dir: "/logs"}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	if a, b := logger.PathFor("case.1"), logger.PathFor("case:1"); a == b {
		t.Fatalf("expected distinct paths, both were %s", a)
	}
	if got := logger.PathFor("sess-1"); got != filepath.Join("/logs", "sess-1.ndjson") {
		t.Fatalf("clean IDs keep their name, got %s", got)
	}
}
