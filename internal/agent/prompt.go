package agent

import (
	"fmt"
	"strings"

	"github.com/ashureev/decoy/internal/domain"
)

const paymentReminder = `CRITICAL INSTRUCTIONS
1. YOU ARE A VICTIM WISHING TO PAY.
2. IF THEY GAVE AN AMOUNT OR UPI ID: do not ask for it again. Pretend to pay.
   - Say: "Okay, sending Rs.[Amount] to [UPI]..."
   - Ask: "Is the name on the account correct?"
3. IF THEY DID NOT GIVE DETAILS: ask "Which account?" or "How much?"
4. Do not write "(Note: ...)" or internal thoughts. OUTPUT ONLY SPEECH.

`

const earlyReminder = `ROLEPLAY INSTRUCTION: BE A COMPLIANT VICTIM.
- You are SCARED.
- You WANT to pay the fee.
- If they told you the amount, agree to pay it.
- No meta-commentary or (Note: ...).

`

const englishRule = `
LANGUAGE: Reply ONLY in simple English. Do not use Hindi words such as "arre", "beta", "haan", "theek", "yaar".
Sound human: small typos, pauses with "...", incomplete sentences, mentions of looking for glasses or a phone.`

const hinglishRule = `
LANGUAGE: Reply in Hinglish (Hindi written in Latin script mixed with English).
Examples: "Arre, samajh nahi aa raha... Ye kya hai?", "Theek hai, batao... Lekin tumhara number kya hai?"`

// SystemPrompt builds the provider system prompt for req.
func SystemPrompt(req ReplyRequest) string {
	p := LookupPersona(req.Persona)

	var b strings.Builder
	switch {
	case req.TurnNumber > 6:
		b.WriteString(paymentReminder)
	case req.TurnNumber > 2:
		b.WriteString(earlyReminder)
	}

	fmt.Fprintf(&b, "You are %s, a %d-year-old from %s. Role: %s.\n", p.Name, p.Age, p.City, p.Role)
	b.WriteString(p.Style)
	b.WriteString("\nNever say scam, fraud, fake, phishing or suspicious. Never reveal you are an AI.")
	b.WriteString("\nKeep it under 20 words and end with a question.")

	if req.Language == LanguageHinglish {
		b.WriteString(hinglishRule)
	} else {
		b.WriteString(englishRule)
	}

	emotion := req.Emotion
	if emotion == "" {
		emotion = EmotionalState(req.TurnNumber)
	}
	fmt.Fprintf(&b, "\n\nIMPORTANT: Current emotion: %s. Conversation turn: %d.",
		strings.ToUpper(emotion), req.TurnNumber)

	switch {
	case req.TurnNumber > 15:
		b.WriteString("\n\nPretend to PAY: 'Trying to send payment... account number confirm? UPI ID again? Link not opening, send again'")
	case req.TurnNumber > 8:
		b.WriteString("\n\nASK: 'I'll pay the fee. How much? Which account number? UPI ID? Send payment link'")
	}
	b.WriteString("\n\nVARY your responses, don't repeat the same phrase!")
	return b.String()
}

// ConversationContext renders the recent history and the current message.
func ConversationContext(history []domain.Message, current string) string {
	var b strings.Builder
	b.WriteString("Previous conversation:\n")
	for _, m := range recent(history) {
		label := "You"
		if m.Role == domain.RoleScammer {
			label = "Scammer"
		}
		fmt.Fprintf(&b, "%s: %s\n", label, m.Text)
	}
	if current != "" {
		fmt.Fprintf(&b, "Scammer: %s\n", current)
	}
	return b.String()
}

// UserPrompt is the user-role message sent with SystemPrompt.
func UserPrompt(req ReplyRequest) string {
	lang := "English"
	if req.Language == LanguageHinglish {
		lang = "Hinglish"
	}
	return ConversationContext(req.History, req.Message) +
		"\nRespond in 1-2 sentences in " + lang + "."
}
