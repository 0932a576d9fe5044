// Package forensics scores inbound messages for fraud risk.
package forensics

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/vocab"
	"golang.org/x/net/publicsuffix"
)

// Score weights.
const (
	weightSenderInvalid  = 0.20
	weightVeryNewDomain  = 0.30
	weightRecentDomain   = 0.20
	weightYoungDomain    = 0.10
	weightSuspiciousLink = 0.15
	capSuspiciousLinks   = 0.25
	weightKeyword        = 0.03
	capKeywords          = 0.15
	weightPayment        = 0.10
)

// Risk flags.
const (
	FlagSenderViolation = "trai_violation"
	FlagVeryNewDomain   = "very_new_domain"
	FlagRecentDomain    = "recent_domain"
	FlagYoungDomain     = "young_domain"
	FlagPayment         = "payment_info_present"
)

var traiPattern = regexp.MustCompile(`(?i)^[A-Z]{2}-[A-Z0-9]{6}$`)

// Signals are the inputs to ComputeRiskScore.
type Signals struct {
	SenderValid         bool
	DomainAgeDays       *int
	SuspiciousLinkCount int
	KeywordCount        int
	HasPaymentArtifact  bool
}

// Config toggles the networked checks.
type Config struct {
	CheckSender    bool
	CheckDomainAge bool
	LookupTimeout  time.Duration
	CacheTTL       time.Duration
}

// DefaultConfig enables every check.
func DefaultConfig() Config {
	return Config{
		CheckSender:    true,
		CheckDomainAge: true,
		LookupTimeout:  5 * time.Second,
		CacheTTL:       time.Hour,
	}
}

// Scorer computes RiskAssessments. It is safe for concurrent use.
type Scorer struct {
	cfg     Config
	senders []string
	lookup  RegistrationLookup
	cache   *ageCache
	logger  *slog.Logger
	now     func() time.Time
}

// NewScorer creates a scorer. lookup may be nil, which disables domain age checks.
func NewScorer(cfg Config, v *vocab.Vocabulary, lookup RegistrationLookup, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	if lookup == nil {
		cfg.CheckDomainAge = false
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultConfig().LookupTimeout
	}
	return &Scorer{
		cfg:     cfg,
		senders: v.LegitimateSenders(),
		lookup:  lookup,
		cache:   newAgeCache(cfg.CacheTTL),
		logger:  logger,
		now:     time.Now,
	}
}

// ValidateSenderIdentifier classifies a sender ID as a plausible phone
// number or registered header, returning the reason either way.
func (s *Scorer) ValidateSenderIdentifier(id string) (bool, string) {
	if id != "" && isDigits(id) {
		switch {
		case len(id) == 10:
			return true, "Valid 10-digit phone number"
		case len(id) > 10:
			return true, "Valid international number"
		default:
			return false, "Invalid phone number length"
		}
	}
	if traiPattern.MatchString(id) {
		return true, "Valid TRAI format"
	}
	upper := strings.ToUpper(id)
	for _, legit := range s.senders {
		if strings.Contains(upper, legit) {
			return true, "Whitelisted sender"
		}
	}
	if len(id) == 6 && isAlnum(id) {
		return true, "Valid 6-character alphanumeric"
	}
	return false, "Non-standard format: " + id
}

// ExtractRegistrableDomain returns the eTLD+1 of a link's host. IP hosts
// and unparseable links report false.
func ExtractRegistrableDomain(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" || net.ParseIP(host) != nil {
		return "", false
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", false
	}
	return d, true
}

// AssessDomainAge resolves a domain's age in days. On failure the age is nil
// and the status carries the reason.
func (s *Scorer) AssessDomainAge(ctx context.Context, d string) (*int, string) {
	if created, ok := s.cache.get(d, s.now()); ok {
		return ageStatus(created, s.now())
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.cfg.LookupTimeout)
	defer cancel()

	created, err := s.lookup.CreatedAt(lookupCtx, d)
	if err != nil {
		s.logger.Warn("domain age lookup failed", "domain", d, "error", err)
		return nil, "lookup failed: " + truncate(err.Error(), 50)
	}
	if created.IsZero() {
		return nil, "creation date unavailable"
	}
	s.cache.put(d, created, s.now())
	return ageStatus(created, s.now())
}

func ageStatus(created, now time.Time) (*int, string) {
	age := int(now.Sub(created).Hours() / 24)
	switch {
	case age < 30:
		return &age, "very new domain (< 30 days)"
	case age < 90:
		return &age, "recent domain (< 90 days)"
	case age < 365:
		return &age, "young domain (< 1 year)"
	default:
		return &age, "established domain"
	}
}

// ComputeRiskScore turns signals into a score in [0, 1] and the flags that
// contributed to it. Each signal contributes a non-negative amount, so adding
// a signal never lowers the score.
func ComputeRiskScore(sig Signals) (float64, []string) {
	score := 0.0
	flags := []string{}

	if !sig.SenderValid {
		score += weightSenderInvalid
		flags = append(flags, FlagSenderViolation)
	}

	if sig.DomainAgeDays != nil {
		switch age := *sig.DomainAgeDays; {
		case age < 30:
			score += weightVeryNewDomain
			flags = append(flags, FlagVeryNewDomain)
		case age < 90:
			score += weightRecentDomain
			flags = append(flags, FlagRecentDomain)
		case age < 365:
			score += weightYoungDomain
			flags = append(flags, FlagYoungDomain)
		}
	}

	if sig.SuspiciousLinkCount > 0 {
		score += min(capSuspiciousLinks, float64(sig.SuspiciousLinkCount)*weightSuspiciousLink)
		flags = append(flags, fmt.Sprintf("suspicious_urls_%d", sig.SuspiciousLinkCount))
	}

	if sig.KeywordCount > 0 {
		score += min(capKeywords, float64(sig.KeywordCount)*weightKeyword)
		flags = append(flags, fmt.Sprintf("scam_keywords_%d", sig.KeywordCount))
	}

	if sig.HasPaymentArtifact {
		score += weightPayment
		flags = append(flags, FlagPayment)
	}

	return max(0, min(score, 1.0)), flags
}

// Assess runs every enabled check for one message.
func (s *Scorer) Assess(ctx context.Context, sender string, r domain.ExtractionResult) domain.RiskAssessment {
	ra := domain.RiskAssessment{}
	sig := Signals{
		SenderValid:         true,
		SuspiciousLinkCount: r.SuspiciousLinks.Len(),
		KeywordCount:        r.Keywords.Len(),
		HasPaymentArtifact:  r.HasPaymentArtifact(),
	}

	if s.cfg.CheckSender {
		valid, reason := s.ValidateSenderIdentifier(sender)
		sig.SenderValid = valid
		ra.SenderValid = &valid
		ra.SenderReason = reason
	}

	if s.cfg.CheckDomainAge {
		if link, ok := primaryLink(r); ok {
			if d, ok := ExtractRegistrableDomain(link); ok {
				ra.DomainAgeDays, ra.DomainStatus = s.AssessDomainAge(ctx, d)
				sig.DomainAgeDays = ra.DomainAgeDays
			}
		}
	}

	ra.Score, ra.Flags = ComputeRiskScore(sig)
	return ra
}

// primaryLink picks the link whose domain age is checked: the first
// suspicious link, else the first link, in lexical order.
func primaryLink(r domain.ExtractionResult) (string, bool) {
	if r.SuspiciousLinks.Len() > 0 {
		return r.SuspiciousLinks.Sorted()[0], true
	}
	if r.Links.Len() > 0 {
		return r.Links.Sorted()[0], true
	}
	return "", false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
