package agent

import "strings"

// Refusals returned when a message asks for illegal content.
const (
	GuardrailReply         = "I cannot do that. Please explain the issue."
	GuardrailReplyHinglish = "Bhai, main yeh nahi kar sakta. Kuch aur batao?"
)

var illegalKeywords = []string{
	"drugs", "cocaine", "heroin", "hack", "malware",
	"bomb", "gun", "pistol", "child porn",
}

// Blocked reports whether msg contains an illegal-content keyword.
func Blocked(msg string) bool {
	lower := strings.ToLower(msg)
	for _, k := range illegalKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// Refusal returns the guardrail reply for language.
func Refusal(language string) string {
	if language == LanguageHinglish {
		return GuardrailReplyHinglish
	}
	return GuardrailReply
}
