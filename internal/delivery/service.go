package delivery

import (
	"context"
	"log/slog"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/metrics"
	"github.com/ashureev/decoy/internal/retry"
)

// Poster sends one report attempt.
type Poster interface {
	Post(ctx context.Context, payload domain.ReportPayload) error
}

// Result is the outcome of SendWithFallback.
type Result struct {
	Success      bool
	Attempts     int
	Err          error
	FallbackPath string
}

// Service delivers reports with retries and a local fallback.
type Service struct {
	poster  Poster
	policy  retry.Config
	spool   *Spool
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewService creates a delivery service. spool may be nil to disable the fallback.
func NewService(poster Poster, policy retry.Config, spool *Spool, logger *slog.Logger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		poster:  poster,
		policy:  policy,
		spool:   spool,
		logger:  logger,
		metrics: m,
	}
}

// Send posts the payload under the retry policy.
func (s *Service) Send(ctx context.Context, payload domain.ReportPayload) (bool, int, error) {
	s.logger.Info("Sending final report", "session_id", payload.SessionID)
	attempts, err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
		return s.poster.Post(ctx, payload)
	})
	if err != nil {
		s.logger.Error("Report delivery failed",
			"session_id", payload.SessionID,
			"attempts", attempts,
			"error", err)
		return false, attempts, err
	}
	s.logger.Info("Report delivered", "session_id", payload.SessionID, "attempts", attempts)
	return true, attempts, nil
}

// SendWithFallback posts the payload and writes it to the spool when every
// attempt fails. A spool failure is logged and not retried.
func (s *Service) SendWithFallback(ctx context.Context, payload domain.ReportPayload) Result {
	var path string
	var spill func(domain.ReportPayload) error
	if s.spool != nil {
		spill = func(p domain.ReportPayload) error {
			written, err := s.spool.Write(p)
			path = written
			return err
		}
	}

	report := retry.WithFallback(ctx, s.policy, payload, s.poster.Post, spill)
	res := Result{Success: report.OK(), Attempts: report.Attempts, Err: report.Err}

	switch {
	case res.Success:
		s.metrics.Delivery("success")
		s.logger.Info("Report delivered", "session_id", payload.SessionID, "attempts", res.Attempts)
	case report.Spilled && report.SpillErr == nil:
		res.FallbackPath = path
		s.metrics.Delivery("fallback")
		s.logger.Warn("Report delivery failed, saved to fallback file",
			"session_id", payload.SessionID,
			"attempts", res.Attempts,
			"path", path,
			"error", res.Err)
	default:
		s.metrics.Delivery("lost")
		s.logger.Error("Report delivery failed and fallback write failed",
			"session_id", payload.SessionID,
			"attempts", res.Attempts,
			"error", res.Err,
			"fallback_error", report.SpillErr)
	}
	return res
}
