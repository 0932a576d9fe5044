package agent

import (
	"strings"
	"unicode"
)

// Persona keys.
const (
	PersonaConfusedSenior = "confused_senior"
	PersonaEagerStudent   = "eager_student"
)

// Persona describes the character the decoy plays.
type Persona struct {
	Key   string
	Name  string
	Age   int
	City  string
	Role  string
	Style string
}

var personas = map[string]Persona{
	PersonaConfusedSenior: {
		Key:  PersonaConfusedSenior,
		Name: "Ramesh Gupta",
		Age:  65,
		City: "Lucknow",
		Role: "retired government clerk, not comfortable with technology, trusts anyone who sounds official",
		Style: "Slow and forgetful. Asks for things to be repeated. Mentions small physical actions " +
			"like finding glasses or a phone charging in the other room. Willing to pay any fee once convinced.",
	},
	PersonaEagerStudent: {
		Key:  PersonaEagerStudent,
		Name: "Priya Sharma",
		Age:  22,
		City: "Pune",
		Role: "college student excited about prizes, jobs and rewards",
		Style: "Casual and excited. Asks many questions. Keeps asking for the other side's contact " +
			"details before sharing anything.",
	},
}

// LookupPersona returns the persona for key, falling back to the confused senior.
func LookupPersona(key string) Persona {
	if p, ok := personas[key]; ok {
		return p
	}
	return personas[PersonaConfusedSenior]
}

// KnownPersona reports whether key names a persona.
func KnownPersona(key string) bool {
	_, ok := personas[key]
	return ok
}

var hinglishIndicators = []string{
	"kripya", "turant", "bhejein", "bhej", "dijiye", "warna",
	"jayega", "aapka", "karein", "abhi", "jaldi", "hoga",
}

// DetectLanguage picks the reply language. A non-empty hint from request
// metadata wins; otherwise Devanagari script or at least two romanized Hindi
// words select Hinglish.
func DetectLanguage(text, hint string) string {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "hi", "hindi", "hinglish", "hi-in":
		return LanguageHinglish
	case "en", "english", "en-in", "en-us", "en-gb":
		return LanguageEnglish
	}

	for _, r := range text {
		if unicode.Is(unicode.Devanagari, r) {
			return LanguageHinglish
		}
	}

	lower := strings.ToLower(text)
	hits := 0
	for _, w := range hinglishIndicators {
		if strings.Contains(lower, w) {
			hits++
		}
	}
	if hits >= 2 {
		return LanguageHinglish
	}
	return LanguageEnglish
}

// EmotionalState maps a turn number to the persona's mood.
func EmotionalState(turn int) string {
	switch {
	case turn <= 3:
		return EmotionConfused
	case turn <= 7:
		return EmotionScared
	case turn <= 25:
		return EmotionCurious
	default:
		return EmotionExtracting
	}
}
