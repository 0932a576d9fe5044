// Package delivery sends final session reports to the downstream consumer,
// retrying transient failures and spooling undeliverable reports to disk.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/retry"
	"github.com/google/uuid"
)

// ErrNoEndpoint is returned when no report URL is configured.
var ErrNoEndpoint = errors.New("report endpoint not configured")

// DefaultTimeout bounds a single POST attempt.
const DefaultTimeout = 10 * time.Second

// reportNamespace seeds idempotency keys so every delivery of one session's
// report carries the same key.
var reportNamespace = uuid.MustParse("6f1c54e2-6a1b-4c53-9d3e-4b8f0f1f2a10")

// Client posts reports to one endpoint.
type Client struct {
	url     string
	apiKey  string
	timeout time.Duration
	http    *http.Client
}

// NewClient creates a client. A zero timeout uses DefaultTimeout.
func NewClient(url, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:     url,
		apiKey:  apiKey,
		timeout: timeout,
		http:    &http.Client{},
	}
}

// IdempotencyKey derives the stable key for a session's report.
func IdempotencyKey(sessionID string) string {
	return uuid.NewSHA1(reportNamespace, []byte(sessionID)).String()
}

// Post sends one attempt. Non-2xx responses return *retry.HTTPStatusError.
func (c *Client) Post(ctx context.Context, payload domain.ReportPayload) error {
	if c.url == "" {
		return ErrNoEndpoint
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build report request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("X-Session-Id", payload.SessionID)
	req.Header.Set("Idempotency-Key", IdempotencyKey(payload.SessionID))

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return &retry.HTTPStatusError{StatusCode: resp.StatusCode, Message: string(msg)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
