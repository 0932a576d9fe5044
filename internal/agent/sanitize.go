package agent

import (
	"regexp"
	"strings"
)

var (
	notePattern    = regexp.MustCompile(`(?is)\(\s*note\s*:.*?\)`)
	bracketPattern = regexp.MustCompile(`\[[^\]]*\]`)
	speakerPattern = regexp.MustCompile(`(?i)^\s*(you|me|victim|assistant|reply|response|[a-z]+ gupta|[a-z]+ sharma)\s*:\s*`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// Sanitize strips meta-commentary from a provider reply: "(Note: ...)"
// asides, bracketed stage directions, a leading speaker label and wrapping
// quotes. It returns "" when nothing speakable is left.
func Sanitize(text string) string {
	s := notePattern.ReplaceAllString(text, "")
	s = bracketPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = speakerPattern.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'“”")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
