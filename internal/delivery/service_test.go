package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() retry.Config {
	return retry.Config{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func samplePayload(id string) domain.ReportPayload {
	return domain.ReportPayload{
		SessionID:              id,
		ScamDetected:           true,
		TotalMessagesExchanged: 20,
		ExtractedIntelligence: domain.ReportIntelligence{
			BankAccounts:       []string{},
			UPIIDs:             []string{"scammer123@paytm"},
			PhishingLinks:      []string{"https://fake-bank.tk"},
			PhoneNumbers:       []string{"+919876543210"},
			SuspiciousKeywords: []string{"verify"},
		},
		AgentNotes: "Scam probability: 84%. Engaged for 20 turns.",
	}
}

func TestClientPostHeadersAndBody(t *testing.T) {
	t.Parallel()

	var got domain.ReportPayload
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", time.Second)
	require.NoError(t, c.Post(context.Background(), samplePayload("sess-9")))

	assert.Equal(t, "Bearer secret", headers.Get("Authorization"))
	assert.Equal(t, "sess-9", headers.Get("X-Session-Id"))
	assert.Equal(t, IdempotencyKey("sess-9"), headers.Get("Idempotency-Key"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, []string{"scammer123@paytm"}, got.ExtractedIntelligence.UPIIDs)
	assert.True(t, got.ScamDetected)
}

func TestIdempotencyKeyStable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, IdempotencyKey("a"), IdempotencyKey("a"))
	assert.NotEqual(t, IdempotencyKey("a"), IdempotencyKey("b"))
}

func TestClientNoEndpoint(t *testing.T) {
	t.Parallel()

	err := NewClient("", "", 0).Post(context.Background(), samplePayload("x"))
	require.ErrorIs(t, err, ErrNoEndpoint)
}

func TestSendRetriesTransient(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	svc := NewService(NewClient(srv.URL, "k", time.Second), testPolicy(), nil, nil, nil)
	ok, attempts, err := svc.Send(context.Background(), samplePayload("s1"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, attempts)
}

func TestSendPermanentFailureStopsEarly(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	svc := NewService(NewClient(srv.URL, "k", time.Second), testPolicy(), nil, nil, nil)
	ok, attempts, err := svc.Send(context.Background(), samplePayload("s1"))
	assert.False(t, ok)
	assert.Equal(t, 1, attempts)
	assert.Equal(t, int32(1), calls.Load())

	var httpErr *retry.HTTPStatusError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
}

func TestSendWithFallbackWritesFileAfterExhaustion(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "failed_reports")
	svc := NewService(NewClient(srv.URL, "k", time.Second), testPolicy(), NewSpool(dir), nil, nil)

	payload := samplePayload("sess-fail")
	res := svc.SendWithFallback(context.Background(), payload)

	assert.False(t, res.Success)
	assert.Equal(t, 3, res.Attempts)
	require.Error(t, res.Err)
	assert.Equal(t, filepath.Join(dir, "sess-fail.json"), res.FallbackPath)

	data, err := os.ReadFile(res.FallbackPath)
	require.NoError(t, err)
	var onDisk domain.ReportPayload
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, payload, onDisk)
	assert.Contains(t, string(data), "\n  \"sessionId\"")
}

func TestSendWithFallbackSuccessSkipsSpool(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	dir := t.TempDir()
	svc := NewService(NewClient(srv.URL, "k", time.Second), testPolicy(), NewSpool(dir), nil, nil)
	res := svc.SendWithFallback(context.Background(), samplePayload("ok"))

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.Empty(t, res.FallbackPath)

	paths, err := NewSpool(dir).List()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestSendWithFallbackSpoolFailure(t *testing.T) {
	t.Parallel()

	// A file where the spool directory should be makes MkdirAll fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	svc := NewService(NewClient("", "", 0), testPolicy(), NewSpool(filepath.Join(blocker, "spool")), nil, nil)
	res := svc.SendWithFallback(context.Background(), samplePayload("s"))

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.Err, ErrNoEndpoint)
	assert.Empty(t, res.FallbackPath)
}

func TestSpoolListReadRemove(t *testing.T) {
	t.Parallel()

	sp := NewSpool(t.TempDir())
	_, err := sp.Write(samplePayload("b"))
	require.NoError(t, err)
	_, err = sp.Write(samplePayload("a/../../etc"))
	require.NoError(t, err)

	paths, err := sp.List()
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, sp.PathFor("a/../../etc"), paths[0])
	assert.Equal(t, sp.Dir(), filepath.Dir(paths[0]))

	p, err := sp.Read(paths[1])
	require.NoError(t, err)
	assert.Equal(t, "b", p.SessionID)

	require.NoError(t, sp.Remove(paths[1]))
	require.NoError(t, sp.Remove(paths[1]))
	paths, err = sp.List()
	require.NoError(t, err)
	assert.Len(t, paths, 1)
}

func TestSpoolListMissingDir(t *testing.T) {
	t.Parallel()

	paths, err := NewSpool(filepath.Join(t.TempDir(), "nope")).List()
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestSpoolKeepsCollidingIDsApart(t *testing.T) {
	t.Parallel()

	sp := NewSpool(t.TempDir())
	first := samplePayload("case.1")
	first.ExtractedIntelligence.UPIIDs = []string{"first@paytm"}
	second := samplePayload("case:1")
	second.ExtractedIntelligence.UPIIDs = []string{"second@ybl"}

	p1, err := sp.Write(first)
	require.NoError(t, err)
	p2, err := sp.Write(second)
	require.NoError(t, err)
	require.NotEqual(t, p1, p2)

	got, err := sp.Read(p1)
	require.NoError(t, err)
	assert.Equal(t, "case.1", got.SessionID)
	assert.Equal(t, []string{"first@paytm"}, got.ExtractedIntelligence.UPIIDs)

	paths, err := sp.List()
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}
