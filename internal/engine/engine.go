// Package engine runs the per-session turn state machine: load, detect,
// engage, extract, persist and report.
package engine

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/decoy/internal/agent"
	"github.com/ashureev/decoy/internal/delivery"
	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/metrics"
	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// NeutralReply is sent when a message scores below the engagement threshold.
const NeutralReply = "I don't understand... What is this about?"

// StatusSuccess is the only reply status.
const StatusSuccess = "success"

const (
	tracerName     = "github.com/ashureev/decoy/internal/engine"
	previewLength  = 100
	defaultTurnCap = 20
	persistTimeout = 10 * time.Second
)

var (
	// ErrMissingSessionID is returned for a message without a session ID.
	ErrMissingSessionID = errors.New("session id is required")
	// ErrEmptyMessage is returned for a message with no text.
	ErrEmptyMessage = errors.New("message text is required")
)

// InboundMessage is one message from the suspected scammer.
type InboundMessage struct {
	SessionID string
	SenderID  string
	Text      string
	Timestamp time.Time
	Channel   string
	// Language is an optional hint from request metadata.
	Language string
	// History seeds the generator context when the store has no record.
	History []domain.Message
}

// Reply is returned for every processed message.
type Reply struct {
	Status     string `json:"status"`
	Text       string `json:"reply"`
	TurnNumber int    `json:"turn_number"`
	Complete   bool   `json:"complete"`
}

// Config controls engagement decisions.
type Config struct {
	EngageThreshold float64
	MaxTurns        int
	DefaultPersona  string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		EngageThreshold: 0.3,
		MaxTurns:        defaultTurnCap,
		DefaultPersona:  agent.PersonaConfusedSenior,
	}
}

// Extractor harvests artifacts from one message.
type Extractor interface {
	Extract(text string) domain.ExtractionResult
}

// Assessor scores one message.
type Assessor interface {
	Assess(ctx context.Context, sender string, r domain.ExtractionResult) domain.RiskAssessment
}

// Replier produces the decoy's reply. It must always return text.
type Replier interface {
	Reply(ctx context.Context, req agent.ReplyRequest) agent.Reply
}

// SessionStore persists sessions.
type SessionStore interface {
	Load(ctx context.Context, id string) (*domain.Session, bool)
	Save(ctx context.Context, sess *domain.Session) error
}

// Reporter delivers the final report.
type Reporter interface {
	SendWithFallback(ctx context.Context, payload domain.ReportPayload) delivery.Result
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Extractor Extractor
	Assessor  Assessor
	Replier   Replier
	Store     SessionStore
	Reporter  Reporter
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers an observer for turn events.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// Engine processes inbound messages one turn at a time per session.
type Engine struct {
	cfg       Config
	extractor Extractor
	assessor  Assessor
	replier   Replier
	store     SessionStore
	reporter  Reporter
	observers []Observer
	locks     *keyedMutex
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	now       func() time.Time
}

// New creates an Engine.
func New(cfg Config, deps Deps, opts ...Option) *Engine {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = defaultTurnCap
	}
	if cfg.DefaultPersona == "" {
		cfg.DefaultPersona = agent.PersonaConfusedSenior
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:       cfg,
		extractor: deps.Extractor,
		assessor:  deps.Assessor,
		replier:   deps.Replier,
		store:     deps.Store,
		reporter:  deps.Reporter,
		locks:     newKeyedMutex(),
		logger:    logger,
		metrics:   deps.Metrics,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Process runs one pass of the state machine for msg. Only invalid input
// returns an error; every other failure resolves to a reply.
func (e *Engine) Process(ctx context.Context, msg InboundMessage) (Reply, error) {
	if strings.TrimSpace(msg.SessionID) == "" {
		return Reply{}, ErrMissingSessionID
	}
	if strings.TrimSpace(msg.Text) == "" {
		return Reply{}, ErrEmptyMessage
	}

	unlock := e.locks.Lock(msg.SessionID)
	defer unlock()
	defer e.metrics.TurnStarted()()

	ctx, span := e.tracer.Start(ctx, "engine.process",
		trace.WithAttributes(
			attribute.String("decoy.session_id", msg.SessionID),
			attribute.String("decoy.channel", msg.Channel),
		),
	)
	defer span.End()

	sess := e.start(context.WithoutCancel(ctx), msg)
	history := sess.History()
	if len(history) == 0 && len(msg.History) > 0 {
		history = msg.History
	}
	sess.BeginTurn(msg.Text, e.now())
	span.SetAttributes(attribute.Int("decoy.turn", sess.TurnNumber))

	// DETECT
	sess.Phase = domain.PhaseDetect
	extracted := e.extractor.Extract(msg.Text)
	risk := e.assessor.Assess(ctx, sess.SenderID, extracted)
	sess.RecordRisk(risk, e.cfg.EngageThreshold)
	e.metrics.RiskScore(risk.Score)
	span.SetAttributes(attribute.Float64("decoy.risk_score", risk.Score))

	ev := TurnEvent{
		SessionID:  sess.ID,
		Channel:    msg.Channel,
		TurnNumber: sess.TurnNumber,
		Inbound:    msg.Text,
		RiskScore:  risk.Score,
		Flags:      risk.Flags,
	}

	if risk.Score >= e.cfg.EngageThreshold {
		e.engage(ctx, sess, extracted, history, &ev)
		e.metrics.Turn("engaged")
	} else {
		e.logger.Info("Score below engagement threshold",
			"session_id", sess.ID,
			"turn", sess.TurnNumber,
			"risk_score", risk.Score)
		sess.SetReply(NeutralReply, e.now())
		sess.Touch(e.now())
		sess.Continue = false
		ev.Reply = NeutralReply
		e.metrics.Turn("neutral")
	}

	// Saves and the report outlive the caller: a disconnect must not drop
	// the turn or allow a second report.
	detached := context.WithoutCancel(ctx)

	callbackDue := false
	if sess.TurnNumber >= e.cfg.MaxTurns {
		sess.Continue = false
		callbackDue = !sess.Delivery.Attempted
	}
	ev.Phase = sess.Phase
	if !callbackDue {
		sess.Phase = domain.PhaseEnd
	}
	ev.Persisted = e.persist(detached, sess)

	if callbackDue {
		e.callback(detached, sess)
		sess.Phase = domain.PhaseEnd
		ev.Persisted = e.persist(detached, sess) && ev.Persisted
		ev.Phase = domain.PhaseCallback
		status := sess.Delivery
		ev.Delivery = &status
	}

	ev.Complete = sess.Delivery.Attempted
	ev.Timestamp = e.now()
	if !ev.Persisted {
		span.SetStatus(codes.Error, "session not persisted")
	}
	e.notify(ev)

	return Reply{
		Status:     StatusSuccess,
		Text:       ev.Reply,
		TurnNumber: sess.TurnNumber,
		Complete:   ev.Complete,
	}, nil
}

// start loads the session or creates a new one.
func (e *Engine) start(ctx context.Context, msg InboundMessage) *domain.Session {
	sess, ok := e.store.Load(ctx, msg.SessionID)
	if !ok {
		sender := msg.SenderID
		if sender == "" {
			sender = msg.SessionID
		}
		sess = domain.NewSession(msg.SessionID, sender, e.cfg.DefaultPersona, e.now())
		e.logger.Info("New session initialized", "session_id", sess.ID, "persona", sess.Persona)
	} else {
		e.logger.Info("Continuing session", "session_id", sess.ID, "turn", sess.TurnNumber+1)
	}
	if sess.SenderID == "" {
		sess.SenderID = msg.SenderID
	}
	sess.Language = agent.DetectLanguage(msg.Text, msg.Language)
	sess.Phase = domain.PhaseStart
	return sess
}

func (e *Engine) engage(ctx context.Context, sess *domain.Session, extracted domain.ExtractionResult, history []domain.Message, ev *TurnEvent) {
	sess.Phase = domain.PhaseEngage
	sess.Continue = true

	r := e.replier.Reply(ctx, agent.ReplyRequest{
		SessionID:  sess.ID,
		TurnNumber: sess.TurnNumber,
		Persona:    sess.Persona,
		Language:   sess.Language,
		Emotion:    agent.EmotionalState(sess.TurnNumber),
		Message:    sess.CurrentTurn().Inbound.Text,
		History:    history,
	})
	sess.SetReply(r.Text, e.now())
	ev.Reply = r.Text
	ev.Provider = r.Provider
	ev.Engaged = true

	// EXTRACT
	sess.Phase = domain.PhaseExtract
	ev.NewArtifacts = sess.Intel.Merge(extracted)
	sess.Ledger = append(sess.Ledger, domain.LedgerEntry{
		ID:             e.newID(),
		Timestamp:      e.now(),
		TurnNumber:     sess.TurnNumber,
		MessagePreview: preview(sess.CurrentTurn().Inbound.Text),
		Extracted:      extracted,
	})
	sess.Touch(e.now())

	if ev.NewArtifacts > 0 {
		e.logger.Info("Intelligence extracted",
			"session_id", sess.ID,
			"turn", sess.TurnNumber,
			"new_artifacts", ev.NewArtifacts,
			"total_artifacts", sess.Intel.Total())
	}
}

// callback sends the final report exactly once per session.
func (e *Engine) callback(ctx context.Context, sess *domain.Session) {
	sess.Phase = domain.PhaseCallback
	e.logger.Info("Max turns reached, sending final report",
		"session_id", sess.ID,
		"turn", sess.TurnNumber)

	ctx, span := e.tracer.Start(ctx, "engine.callback",
		trace.WithAttributes(attribute.String("decoy.session_id", sess.ID)))
	defer span.End()

	res := e.reporter.SendWithFallback(ctx, BuildReport(sess))

	status := domain.DeliveryStatus{
		Attempted: true,
		Success:   res.Success,
		Attempts:  res.Attempts,
	}
	if res.Err != nil {
		msg := res.Err.Error()
		status.LastError = &msg
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "report delivery failed")
	}
	if res.FallbackPath != "" {
		path := res.FallbackPath
		status.FallbackPath = &path
	}
	if res.Success {
		at := e.now()
		status.DeliveredAt = &at
	}
	sess.Delivery = status
}

func (e *Engine) persist(ctx context.Context, sess *domain.Session) bool {
	ctx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := e.store.Save(ctx, sess); err != nil {
		e.logger.Error("Failed to persist session",
			"session_id", sess.ID,
			"turn", sess.TurnNumber,
			"error", err)
		return false
	}
	return true
}

func (e *Engine) notify(ev TurnEvent) {
	for _, o := range e.observers {
		o.OnTurn(ev)
	}
}

func (e *Engine) newID() string {
	id, err := ulid.New(ulid.Timestamp(e.now()), rand.Reader)
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= previewLength {
		return text
	}
	return string([]rune(text)[:previewLength])
}
