// Package extract pulls payment, contact and link artifacts out of raw message text.
package extract

import (
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/vocab"
	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is the region assumed for phone numbers written without a country code.
const DefaultRegion = "IN"

var (
	bankAccountPattern = regexp.MustCompile(`\b\d{9,18}\b`)
	emailPattern       = regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)
	linkPattern        = regexp.MustCompile(`(?i)https?://(?:www\.)?[-a-z0-9@:%._+~#=]{1,256}\.[a-z0-9()]{1,6}\b[-a-z0-9()@:%_+.~#?&/=]*`)
	phoneCandidate     = regexp.MustCompile(`\+?\(?\d[\d\s\-().]*\d`)
	phoneSeparators    = regexp.MustCompile(`[\s\-().]+`)
)

// Dates and clock times look like digit runs and are blanked before phone
// matching.
var (
	datePattern = regexp.MustCompile(`\b(?:\d{4}[-/.]\d{1,2}[-/.]\d{1,2}|\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4})\b`)
	timePattern = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`)
)

const maxPhoneDigits = 15

// Extractor runs the per-message extraction pass. It holds only immutable
// state and is safe for concurrent use.
type Extractor struct {
	paymentPattern *regexp.Regexp
	suffixes       []string
	keywords       []string
	region         string
	now            func() time.Time
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRegion overrides the default phone region.
func WithRegion(region string) Option {
	return func(e *Extractor) { e.region = strings.ToUpper(region) }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// New builds an extractor over the given vocabulary.
func New(v *vocab.Vocabulary, opts ...Option) *Extractor {
	providers := v.PaymentProviders()
	quoted := make([]string, len(providers))
	for i, p := range providers {
		quoted[i] = regexp.QuoteMeta(p)
	}
	e := &Extractor{
		paymentPattern: regexp.MustCompile(`(?i)\b[\w.\-]{3,}@(?:` + strings.Join(quoted, "|") + `)\b`),
		suffixes:       v.SuspiciousSuffixes(),
		keywords:       v.Keywords(),
		region:         DefaultRegion,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract runs every category over text. Apart from ExtractedAt the result
// depends only on text.
func (e *Extractor) Extract(text string) domain.ExtractionResult {
	links := e.Links(text)
	return domain.ExtractionResult{
		PaymentIDs:      e.PaymentIDs(text),
		BankAccounts:    BankAccounts(text),
		PhoneNumbers:    e.PhoneNumbers(text),
		Links:           links,
		SuspiciousLinks: e.Suspicious(links),
		Emails:          Emails(text),
		Keywords:        e.Keywords(text),
		ExtractedAt:     e.now().UTC(),
		TextLength:      utf8.RuneCountInString(text),
	}
}

// PaymentIDs returns handles of the form user@provider.
func (e *Extractor) PaymentIDs(text string) domain.StringSet {
	return domain.NewStringSet(e.paymentPattern.FindAllString(text, -1)...)
}

// BankAccounts returns every run of 9 to 18 digits. Phone numbers and OTPs
// will also match.
func BankAccounts(text string) domain.StringSet {
	return domain.NewStringSet(bankAccountPattern.FindAllString(text, -1)...)
}

// Emails returns addresses with a dotted domain.
func Emails(text string) domain.StringSet {
	return domain.NewStringSet(emailPattern.FindAllString(text, -1)...)
}

// Links returns http and https URLs with trailing punctuation removed.
func (e *Extractor) Links(text string) domain.StringSet {
	out := domain.StringSet{}
	for _, m := range linkPattern.FindAllString(text, -1) {
		m = strings.TrimRight(m, ".,;:!?)")
		if m != "" {
			out.Add(m)
		}
	}
	return out
}

// Suspicious returns the links whose host ends with a listed suffix.
func (e *Extractor) Suspicious(links domain.StringSet) domain.StringSet {
	out := domain.StringSet{}
	for link := range links {
		host := hostOf(link)
		for _, suffix := range e.suffixes {
			if strings.HasSuffix(host, suffix) {
				out.Add(link)
				break
			}
		}
	}
	return out
}

// Keywords returns every vocabulary entry that occurs in text, ignoring case.
func (e *Extractor) Keywords(text string) domain.StringSet {
	lower := strings.ToLower(text)
	out := domain.StringSet{}
	for _, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			out.Add(kw)
		}
	}
	return out
}

// PhoneNumbers returns valid numbers normalized to E.164. A run of digit
// groups is split on separators; each group is tried alone first and joined
// with the following groups only when it is not a number by itself. Groups
// are parsed in the default region first and region-agnostically second.
func (e *Extractor) PhoneNumbers(text string) domain.StringSet {
	out := domain.StringSet{}
	text = datePattern.ReplaceAllString(text, " ")
	text = timePattern.ReplaceAllString(text, " ")
	for _, candidate := range phoneCandidate.FindAllString(text, -1) {
		parts := phoneSeparators.Split(strings.TrimSpace(candidate), -1)
		for i := 0; i < len(parts); {
			n, used := e.phoneAt(parts[i:])
			if used == 0 {
				i++
				continue
			}
			out.Add(n)
			i += used
		}
	}
	return out
}

// phoneAt returns the first number formed by parts[0], parts[0:2], ... and
// how many parts it consumed. It returns 0 when none parses.
func (e *Extractor) phoneAt(parts []string) (string, int) {
	joined := ""
	for j, p := range parts {
		joined += p
		digits := digitCount(joined)
		if digits > maxPhoneDigits {
			break
		}
		if digits < 8 {
			continue
		}
		if n, ok := e.parsePhone(joined); ok {
			return n, j + 1
		}
	}
	return "", 0
}

func (e *Extractor) parsePhone(raw string) (string, bool) {
	if digitCount(raw) < 8 {
		return "", false
	}
	num, err := phonenumbers.Parse(raw, e.region)
	if err != nil {
		num, err = phonenumbers.Parse(raw, "")
		if err != nil {
			return "", false
		}
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", false
	}
	return phonenumbers.Format(num, phonenumbers.E164), true
}

func digitCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func hostOf(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return strings.ToLower(link)
	}
	return strings.ToLower(u.Hostname())
}
