package engine

import (
	"time"

	"github.com/ashureev/decoy/internal/domain"
)

// TurnEvent describes one completed pass through the state machine.
type TurnEvent struct {
	SessionID    string                 `json:"session_id"`
	Channel      string                 `json:"channel,omitempty"`
	TurnNumber   int                    `json:"turn_number"`
	Phase        domain.Phase           `json:"phase"`
	Inbound      string                 `json:"inbound"`
	Reply        string                 `json:"reply"`
	Provider     string                 `json:"provider,omitempty"`
	Engaged      bool                   `json:"engaged"`
	RiskScore    float64                `json:"risk_score"`
	Flags        []string               `json:"flags"`
	NewArtifacts int                    `json:"new_artifacts"`
	Complete     bool                   `json:"complete"`
	Delivery     *domain.DeliveryStatus `json:"delivery,omitempty"`
	Persisted    bool                   `json:"persisted"`
	Timestamp    time.Time              `json:"timestamp"`
}

// Observer is notified after every turn. Implementations must not block.
type Observer interface {
	OnTurn(ev TurnEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ev TurnEvent)

// OnTurn implements Observer.
func (f ObserverFunc) OnTurn(ev TurnEvent) { f(ev) }
