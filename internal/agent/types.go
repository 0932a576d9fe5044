// Package agent generates in-character decoy replies through a cascade of
// language model providers that always ends in canned responses.
package agent

import (
	"github.com/ashureev/decoy/internal/domain"
)

// Languages a reply can be written in.
const (
	LanguageEnglish  = "english"
	LanguageHinglish = "hinglish"
)

// Emotional states, advanced by turn number.
const (
	EmotionConfused   = "confused"
	EmotionScared     = "scared"
	EmotionCurious    = "curious"
	EmotionExtracting = "extracting"
)

// ReplyRequest carries everything a provider needs for one reply.
type ReplyRequest struct {
	SessionID  string           `json:"session_id"`
	TurnNumber int              `json:"turn_number"`
	Persona    string           `json:"persona"`
	Language   string           `json:"language"`
	Emotion    string           `json:"emotion"`
	Message    string           `json:"message"`
	History    []domain.Message `json:"history"`
}

// Reply is the cascade's final answer.
type Reply struct {
	Text     string
	Provider string
	// Guardrail is true when the message was refused without calling a provider.
	Guardrail bool
}

// historyWindow is how many prior messages are shown to a provider.
const historyWindow = 6

// recent returns the tail of history used for prompting.
func recent(history []domain.Message) []domain.Message {
	if len(history) <= historyWindow {
		return history
	}
	return history[len(history)-historyWindow:]
}
