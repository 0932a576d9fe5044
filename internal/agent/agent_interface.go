package agent

import (
	"context"
	"errors"
)

var (
	// ErrEmptyReply is returned when a provider answers with no usable text.
	ErrEmptyReply = errors.New("provider returned empty reply")
	// ErrNotConfigured is returned when a provider lacks credentials.
	ErrNotConfigured = errors.New("provider not configured")
)

// Generator produces one decoy reply. Implementations must honor ctx.
type Generator interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Generate returns the raw reply text.
	Generate(ctx context.Context, req ReplyRequest) (string, error)
}

// Ensure adapters implement Generator.
var (
	_ Generator = (*OpenAIGenerator)(nil)
	_ Generator = (*AnthropicGenerator)(nil)
	_ Generator = (*GrpcGenerator)(nil)
	_ Generator = (*StaticGenerator)(nil)
)
