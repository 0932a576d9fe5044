package forensics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashureev/decoy/internal/domain"
	"github.com/ashureev/decoy/internal/vocab"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	created time.Time
	err     error
	calls   atomic.Int32
}

func (f *fakeLookup) CreatedAt(_ context.Context, _ string) (time.Time, error) {
	f.calls.Add(1)
	return f.created, f.err
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestScorer(lookup RegistrationLookup) *Scorer {
	s := NewScorer(DefaultConfig(), vocab.Default(), lookup, nil)
	s.now = func() time.Time { return testNow }
	return s
}

func TestValidateSenderIdentifier(t *testing.T) {
	t.Parallel()

	s := newTestScorer(nil)
	tests := []struct {
		id     string
		valid  bool
		reason string
	}{
		{"9876543210", true, "Valid 10-digit phone number"},
		{"919876543210", true, "Valid international number"},
		{"12345", false, "Invalid phone number length"},
		{"VM-HDFCBK", true, "Valid TRAI format"},
		{"ad-abc123", true, "Valid TRAI format"},
		{"JX-SBIINB-S", true, "Whitelisted sender"},
		{"AB12CD", true, "Valid 6-character alphanumeric"},
		{"random sender!", false, "Non-standard format: random sender!"},
	}
	for _, tt := range tests {
		valid, reason := s.ValidateSenderIdentifier(tt.id)
		assert.Equal(t, tt.valid, valid, tt.id)
		assert.Equal(t, tt.reason, reason, tt.id)
	}
}

func TestValidateSenderTenDigits(t *testing.T) {
	t.Parallel()

	valid, reason := newTestScorer(nil).ValidateSenderIdentifier("9876543210")
	assert.True(t, valid)
	assert.Contains(t, reason, "10-digit phone number")
}

func TestExtractRegistrableDomain(t *testing.T) {
	t.Parallel()

	d, ok := ExtractRegistrableDomain("https://login.fake-bank.co.uk/verify")
	require.True(t, ok)
	assert.Equal(t, "fake-bank.co.uk", d)

	d, ok = ExtractRegistrableDomain("https://fake-bank.tk")
	require.True(t, ok)
	assert.Equal(t, "fake-bank.tk", d)

	_, ok = ExtractRegistrableDomain("http://192.168.1.10/pay")
	assert.False(t, ok)

	_, ok = ExtractRegistrableDomain("::not a url")
	assert.False(t, ok)
}

func TestComputeRiskScoreHighRisk(t *testing.T) {
	t.Parallel()

	age := 15
	score, flags := ComputeRiskScore(Signals{
		SenderValid:         false,
		DomainAgeDays:       &age,
		SuspiciousLinkCount: 2,
		KeywordCount:        5,
		HasPaymentArtifact:  true,
	})
	assert.GreaterOrEqual(t, score, 0.7)
	assert.LessOrEqual(t, score, 1.0)
	assert.Contains(t, flags, FlagSenderViolation)
	assert.Contains(t, flags, FlagVeryNewDomain)
	assert.Contains(t, flags, "suspicious_urls_2")
	assert.Contains(t, flags, "scam_keywords_5")
	assert.Contains(t, flags, FlagPayment)
}

func TestComputeRiskScoreClean(t *testing.T) {
	t.Parallel()

	age := 4000
	score, flags := ComputeRiskScore(Signals{SenderValid: true, DomainAgeDays: &age})
	assert.Zero(t, score)
	assert.Empty(t, flags)
}

func TestComputeRiskScoreCaps(t *testing.T) {
	t.Parallel()

	score, _ := ComputeRiskScore(Signals{SenderValid: true, SuspiciousLinkCount: 10})
	assert.InDelta(t, 0.25, score, 1e-9)

	score, _ = ComputeRiskScore(Signals{SenderValid: true, KeywordCount: 40})
	assert.InDelta(t, 0.15, score, 1e-9)
}

func TestComputeRiskScoreMonotone(t *testing.T) {
	t.Parallel()

	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("adding a signal never lowers the score", prop.ForAll(
		func(links, keywords, age int, payment bool) bool {
			base := Signals{SenderValid: true, SuspiciousLinkCount: links, KeywordCount: keywords, HasPaymentArtifact: payment}
			s0, _ := ComputeRiskScore(base)

			more := base
			more.SuspiciousLinkCount++
			more.KeywordCount++
			more.SenderValid = false
			more.HasPaymentArtifact = true
			more.DomainAgeDays = &age
			s1, _ := ComputeRiskScore(more)

			return s0 >= 0 && s1 <= 1 && s1 >= s0
		},
		gen.IntRange(0, 20),
		gen.IntRange(0, 60),
		gen.IntRange(0, 2000),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestAssessDomainAgeBucketsAndCache(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{created: testNow.Add(-10 * 24 * time.Hour)}
	s := newTestScorer(lookup)

	age, status := s.AssessDomainAge(context.Background(), "fake-bank.tk")
	require.NotNil(t, age)
	assert.Equal(t, 10, *age)
	assert.Contains(t, status, "very new")

	_, _ = s.AssessDomainAge(context.Background(), "fake-bank.tk")
	assert.Equal(t, int32(1), lookup.calls.Load())
}

func TestAssessDomainAgeFailure(t *testing.T) {
	t.Parallel()

	s := newTestScorer(&fakeLookup{err: errors.New("connection refused")})
	age, status := s.AssessDomainAge(context.Background(), "fake-bank.tk")
	assert.Nil(t, age)
	assert.Equal(t, "lookup failed: connection refused", status)
}

func TestAssessComposesChecks(t *testing.T) {
	t.Parallel()

	s := newTestScorer(&fakeLookup{created: testNow.Add(-5 * 24 * time.Hour)})
	r := domain.ExtractionResult{
		PaymentIDs:      domain.NewStringSet("scammer123@paytm"),
		Links:           domain.NewStringSet("https://fake-bank.tk"),
		SuspiciousLinks: domain.NewStringSet("https://fake-bank.tk"),
		Keywords:        domain.NewStringSet("verify", "send money", "urgent"),
	}

	ra := s.Assess(context.Background(), "random sender!", r)
	require.NotNil(t, ra.SenderValid)
	assert.False(t, *ra.SenderValid)
	require.NotNil(t, ra.DomainAgeDays)
	assert.Equal(t, 5, *ra.DomainAgeDays)
	// 0.2 + 0.3 + 0.15 + 0.09 + 0.1
	assert.InDelta(t, 0.84, ra.Score, 1e-9)
	assert.Contains(t, ra.Flags, FlagVeryNewDomain)
}

func TestAssessWithChecksDisabled(t *testing.T) {
	t.Parallel()

	lookup := &fakeLookup{created: testNow}
	s := NewScorer(Config{}, vocab.Default(), lookup, nil)
	r := domain.ExtractionResult{Links: domain.NewStringSet("https://fake-bank.tk")}

	ra := s.Assess(context.Background(), "???", r)
	assert.Nil(t, ra.SenderValid)
	assert.Nil(t, ra.DomainAgeDays)
	assert.Zero(t, ra.Score)
	assert.Zero(t, lookup.calls.Load())
}

func TestParseCreatedDate(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"2024-05-01T10:00:00Z", "2024-05-01", "01-May-2024", "2024-05-01 10:00:00"} {
		got, err := parseCreatedDate(in)
		require.NoError(t, err, in)
		assert.Equal(t, 2024, got.Year(), in)
		assert.Equal(t, time.May, got.Month(), in)
	}
	_, err := parseCreatedDate("yesterday")
	require.Error(t, err)
}

func TestAgeCacheSweepsExpiredOnWrite(t *testing.T) {
	t.Parallel()

	c := newAgeCache(time.Minute)
	created := testNow.Add(-time.Hour)
	c.put("a.tk", created, testNow)
	c.put("b.tk", created, testNow.Add(10*time.Second))
	assert.Equal(t, 2, c.size())

	later := testNow.Add(2 * time.Minute)
	c.put("c.tk", created, later)
	assert.Equal(t, 1, c.size())
	_, ok := c.get("c.tk", later)
	assert.True(t, ok)
}

func TestAgeCacheBounded(t *testing.T) {
	t.Parallel()

	c := newAgeCache(time.Hour)
	c.max = 2
	created := testNow.Add(-time.Hour)
	c.put("a.tk", created, testNow)
	c.put("b.tk", created, testNow.Add(time.Second))
	c.put("c.tk", created, testNow.Add(2*time.Second))

	assert.Equal(t, 2, c.size())
	_, ok := c.get("a.tk", testNow.Add(3*time.Second))
	assert.False(t, ok, "entry closest to expiry is evicted")
	_, ok = c.get("c.tk", testNow.Add(3*time.Second))
	assert.True(t, ok)
}

func TestNewScorerDefaultsLookupTimeout(t *testing.T) {
	t.Parallel()

	s := NewScorer(Config{CheckDomainAge: true}, vocab.Default(), &fakeLookup{created: testNow}, nil)
	assert.Equal(t, DefaultConfig().LookupTimeout, s.cfg.LookupTimeout)
}
