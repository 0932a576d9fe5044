package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/decoy/internal/metrics"
)

// DefaultProviderTimeout bounds a single provider call.
const DefaultProviderTimeout = 8 * time.Second

// Cascade tries generators in order and falls back to canned replies.
type Cascade struct {
	generators []Generator
	static     *StaticGenerator
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewCascade builds a cascade over generators. The static generator is always
// appended last and need not be included.
func NewCascade(generators []Generator, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	gens := make([]Generator, 0, len(generators))
	for _, g := range generators {
		if g == nil {
			continue
		}
		if _, ok := g.(*StaticGenerator); ok {
			continue
		}
		gens = append(gens, g)
	}
	return &Cascade{
		generators: gens,
		static:     NewStaticGenerator(),
		timeout:    timeout,
		logger:     logger,
		metrics:    m,
	}
}

// Providers lists provider names in call order, static last.
func (c *Cascade) Providers() []string {
	names := make([]string, 0, len(c.generators)+1)
	for _, g := range c.generators {
		names = append(names, g.Name())
	}
	return append(names, c.static.Name())
}

// Reply produces a reply for req. It never returns an empty text.
func (c *Cascade) Reply(ctx context.Context, req ReplyRequest) Reply {
	if req.Emotion == "" {
		req.Emotion = EmotionalState(req.TurnNumber)
	}
	if req.Language == "" {
		req.Language = DetectLanguage(req.Message, "")
	}

	if Blocked(req.Message) {
		c.logger.Warn("Guardrail refused message", "session_id", req.SessionID, "turn", req.TurnNumber)
		c.metrics.Reply("guardrail")
		return Reply{Text: Refusal(req.Language), Provider: "guardrail", Guardrail: true}
	}

	for _, g := range c.generators {
		if ctx.Err() != nil {
			break
		}
		text, err := c.try(ctx, g, req)
		if err != nil {
			c.logger.Warn("Reply provider failed",
				"provider", g.Name(),
				"session_id", req.SessionID,
				"turn", req.TurnNumber,
				"error", err)
			continue
		}
		c.metrics.Reply(g.Name())
		c.logger.Debug("Reply generated", "provider", g.Name(), "session_id", req.SessionID)
		return Reply{Text: text, Provider: g.Name()}
	}

	text, _ := c.static.Generate(ctx, req)
	c.metrics.Reply(c.static.Name())
	c.logger.Info("Using static reply", "session_id", req.SessionID, "turn", req.TurnNumber)
	return Reply{Text: text, Provider: c.static.Name()}
}

func (c *Cascade) try(ctx context.Context, g Generator, req ReplyRequest) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := g.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("generate reply: %w", err)
	}
	text := Sanitize(raw)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}
