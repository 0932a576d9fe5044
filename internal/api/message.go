package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/engine"
)

// MessageRequest is the inbound message schema.
type MessageRequest struct {
	SessionID           string           `json:"sessionId"`
	SenderID            string           `json:"senderId,omitempty"`
	Message             WireMessage      `json:"message"`
	ConversationHistory []WireMessage    `json:"conversationHistory"`
	Metadata            *MessageMetadata `json:"metadata,omitempty"`
}

// WireMessage is one message as exchanged with the caller. Timestamp is
// milliseconds since the epoch.
type WireMessage struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// MessageMetadata carries optional channel hints.
type MessageMetadata struct {
	Channel  string `json:"channel,omitempty"`
	Language string `json:"language,omitempty"`
	Locale   string `json:"locale,omitempty"`
}

// MessageResponse is the reply schema.
type MessageResponse struct {
	Status string `json:"status"`
	Reply  string `json:"reply"`
}

// HandleMessage runs one turn and returns the decoy reply.
func (h *Handler) HandleMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		Error(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	if strings.TrimSpace(req.Message.Text) == "" {
		Error(w, http.StatusBadRequest, "message.text is required")
		return
	}

	if !h.limiter.Allow(req.SessionID) {
		h.logger.Warn("Rate limit exceeded", "session_id", req.SessionID)
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	reply, err := h.engine.Process(r.Context(), toInbound(req))
	if err != nil {
		h.logger.Warn("Rejected message", "session_id", req.SessionID, "error", err)
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	JSON(w, http.StatusOK, MessageResponse{Status: reply.Status, Reply: reply.Text})
}

func toInbound(req MessageRequest) engine.InboundMessage {
	sender := req.SenderID
	if sender == "" {
		sender = req.Message.Sender
	}
	msg := engine.InboundMessage{
		SessionID: req.SessionID,
		SenderID:  sender,
		Text:      req.Message.Text,
		Timestamp: fromMillis(req.Message.Timestamp),
	}
	if req.Metadata != nil {
		msg.Channel = req.Metadata.Channel
		msg.Language = req.Metadata.Language
	}
	for _, m := range req.ConversationHistory {
		role := domain.RoleAgent
		switch strings.ToLower(m.Sender) {
		case "scammer", "user", domain.RoleScammer:
			role = domain.RoleScammer
		}
		msg.History = append(msg.History, domain.Message{
			Role:      role,
			Text:      m.Text,
			Timestamp: fromMillis(m.Timestamp),
		})
	}
	return msg
}

func fromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
