// Package domain contains core domain types for the decoy service.
package domain

import (
	"time"
)

// Phase is a state of the per-turn session state machine.
type Phase string

// State machine phases.
const (
	PhaseStart    Phase = "START"
	PhaseDetect   Phase = "DETECT"
	PhaseEngage   Phase = "ENGAGE"
	PhaseExtract  Phase = "EXTRACT"
	PhaseCallback Phase = "CALLBACK"
	PhaseEnd      Phase = "END"
)

// Message roles.
const (
	RoleScammer = "scammer"
	RoleAgent   = "agent"
)

// Message is one side of a turn.
type Message struct {
	Role      string    `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Turn is one inbound message plus the generated reply.
// Reply stays nil until the reply is known.
type Turn struct {
	Number  int      `json:"number"`
	Inbound Message  `json:"inbound"`
	Reply   *Message `json:"reply,omitempty"`
}

// RiskAssessment is the score and flags computed for the latest turn.
type RiskAssessment struct {
	Score         float64  `json:"score"`
	Flags         []string `json:"flags"`
	SenderValid   *bool    `json:"sender_valid,omitempty"`
	SenderReason  string   `json:"sender_reason,omitempty"`
	DomainAgeDays *int     `json:"domain_age_days,omitempty"`
	DomainStatus  string   `json:"domain_status,omitempty"`
}

// LedgerEntry records one turn's raw extraction result.
type LedgerEntry struct {
	ID             string           `json:"id"`
	Timestamp      time.Time        `json:"timestamp"`
	TurnNumber     int              `json:"turn_number"`
	MessagePreview string           `json:"message_preview"`
	Extracted      ExtractionResult `json:"extracted"`
}

// DeliveryStatus tracks the final report delivery.
type DeliveryStatus struct {
	Attempted    bool       `json:"attempted"`
	Success      bool       `json:"success"`
	Attempts     int        `json:"attempts"`
	LastError    *string    `json:"last_error,omitempty"`
	FallbackPath *string    `json:"fallback_path,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
}

// Session is the persisted state of one decoy conversation.
type Session struct {
	ID                 string         `json:"id"`
	SenderID           string         `json:"sender_id"`
	Persona            string         `json:"persona"`
	Language           string         `json:"language,omitempty"`
	TurnNumber         int            `json:"turn_number"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	EngagementDuration time.Duration  `json:"engagement_duration"`
	Turns              []Turn         `json:"turns"`
	Risk               RiskAssessment `json:"risk"`
	PeakScore          float64        `json:"peak_score"`
	ThreatConfirmed    bool           `json:"threat_confirmed"`
	Intel              Intelligence   `json:"intel"`
	Ledger             []LedgerEntry  `json:"ledger"`
	Phase              Phase          `json:"phase"`
	Continue           bool           `json:"continue"`
	Delivery           DeliveryStatus `json:"delivery"`
}

// NewSession initializes a session at turn 0 with empty accumulators.
func NewSession(id, senderID, persona string, now time.Time) *Session {
	return &Session{
		ID:        id,
		SenderID:  senderID,
		Persona:   persona,
		CreatedAt: now,
		UpdatedAt: now,
		Turns:     []Turn{},
		Intel:     NewIntelligence(),
		Ledger:    []LedgerEntry{},
		Phase:     PhaseStart,
		Continue:  true,
	}
}

// BeginTurn increments the turn counter and appends the inbound message with
// a pending reply.
func (s *Session) BeginTurn(text string, now time.Time) *Turn {
	s.TurnNumber++
	s.UpdatedAt = now
	s.Turns = append(s.Turns, Turn{
		Number: s.TurnNumber,
		Inbound: Message{
			Role:      RoleScammer,
			Text:      text,
			Timestamp: now,
		},
	})
	return &s.Turns[len(s.Turns)-1]
}

// CurrentTurn returns the latest turn, or nil before the first message.
func (s *Session) CurrentTurn() *Turn {
	if len(s.Turns) == 0 {
		return nil
	}
	return &s.Turns[len(s.Turns)-1]
}

// SetReply attaches the generated reply to the current turn.
func (s *Session) SetReply(text string, now time.Time) {
	t := s.CurrentTurn()
	if t == nil {
		return
	}
	t.Reply = &Message{Role: RoleAgent, Text: text, Timestamp: now}
	s.UpdatedAt = now
}

// RecordRisk stores the latest assessment and tracks whether any turn crossed
// the engagement threshold.
func (s *Session) RecordRisk(r RiskAssessment, threshold float64) {
	s.Risk = r
	if r.Score > s.PeakScore {
		s.PeakScore = r.Score
	}
	if r.Score >= threshold {
		s.ThreatConfirmed = true
	}
}

// History flattens the turns into an ordered message list, excluding the
// current (pending) inbound message.
func (s *Session) History() []Message {
	out := make([]Message, 0, len(s.Turns)*2)
	for i, t := range s.Turns {
		if i == len(s.Turns)-1 && t.Reply == nil {
			break
		}
		out = append(out, t.Inbound)
		if t.Reply != nil {
			out = append(out, *t.Reply)
		}
	}
	return out
}

// Touch refreshes the update timestamp and the engagement duration.
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
	if !s.CreatedAt.IsZero() {
		s.EngagementDuration = now.Sub(s.CreatedAt)
	}
}
