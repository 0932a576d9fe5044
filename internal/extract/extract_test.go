package extract

import (
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

func newTestExtractor() *Extractor {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return New(vocab.Default(), WithClock(func() time.Time { return fixed }))
}

func TestExtractScamMessage(t *testing.T) {
	t.Parallel()

	e := newTestExtractor()
	r := e.Extract("Send money to scammer123@paytm or call 9876543210, verify at https://fake-bank.tk")

	assert.Equal(t, []string{"scammer123@paytm"}, r.PaymentIDs.Sorted())
	assert.Equal(t, []string{"https://fake-bank.tk"}, r.Links.Sorted())
	assert.Equal(t, []string{"https://fake-bank.tk"}, r.SuspiciousLinks.Sorted())
	assert.Equal(t, []string{"+919876543210"}, r.PhoneNumbers.Sorted())
	assert.True(t, r.Keywords.Has("verify"))
	assert.True(t, r.Keywords.Has("send money"))
	assert.Zero(t, r.Emails.Len())
	assert.True(t, r.HasPaymentArtifact())
}

func TestPhoneNumbersCollapseFormats(t *testing.T) {
	t.Parallel()

	e := newTestExtractor()
	got := e.PhoneNumbers("call +91 98765 43210 or 098765-43210 or 9876543210")
	assert.Equal(t, []string{"+919876543210"}, got.Sorted())
}

func TestPhoneNumbersInternational(t *testing.T) {
	t.Parallel()

	e := newTestExtractor()
	got := e.PhoneNumbers("US office: +1 650 253 0000")
	assert.Equal(t, []string{"+16502530000"}, got.Sorted())
}

func TestPhoneNumbersAdjacent(t *testing.T) {
	t.Parallel()

	e := newTestExtractor()
	got := e.PhoneNumbers("Call 9876543210 9123456789 now")
	assert.Equal(t, []string{"+919123456789", "+919876543210"}, got.Sorted())

	got = e.PhoneNumbers("numbers 98765 43210 9123456789")
	assert.Equal(t, []string{"+919123456789", "+919876543210"}, got.Sorted())
}

func TestPhoneNumbersIgnoreDatesAndAccounts(t *testing.T) {
	t.Parallel()

	e := newTestExtractor()
	tests := []string{
		"Deadline 2024-01-15 10:30 ok",
		"Pay by 15/01/2024 before 18:00",
		"Account 123456789012 IFSC",
	}
	for _, text := range tests {
		assert.Zero(t, e.PhoneNumbers(text).Len(), text)
	}
}

func TestBankAccountsOverInclusive(t *testing.T) {
	t.Parallel()

	got := BankAccounts("acct 123456789012 otp 1234 ref 98765432")
	assert.Equal(t, []string{"123456789012"}, got.Sorted())
}

func TestEmailsRequireDottedDomain(t *testing.T) {
	t.Parallel()

	got := Emails("mail support@fake-bank.com or pay help@upi")
	assert.Equal(t, []string{"support@fake-bank.com"}, got.Sorted())
}

func TestLinksTrimTrailingPunctuation(t *testing.T) {
	t.Parallel()

	e := newTestExtractor()
	links := e.Links("Visit http://secure-login.xyz/verify. Or (https://example.com/a?b=1).")
	assert.Equal(t, []string{"http://secure-login.xyz/verify", "https://example.com/a?b=1"}, links.Sorted())
	assert.Equal(t, []string{"http://secure-login.xyz/verify"}, e.Suspicious(links).Sorted())
}

func TestKeywordsIgnoreCase(t *testing.T) {
	t.Parallel()

	e := newTestExtractor()
	got := e.Keywords("URGENT: your KYC is pending, Click Here")
	assert.True(t, got.Has("urgent"))
	assert.True(t, got.Has("kyc"))
	assert.True(t, got.Has("click here"))
}

func TestExtractEmptyText(t *testing.T) {
	t.Parallel()

	r := newTestExtractor().Extract("")
	assert.True(t, r.Empty())
	assert.Zero(t, r.TextLength)
}

func TestExtractDeterministic(t *testing.T) {
	t.Parallel()

	e := newTestExtractor()
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	fragments := []string{
		"pay to ramesh@ybl", "call 9876543210", "https://win-big.top/claim",
		"urgent", "acct 123456789012", "mail a.b@example.org", "hello", " ", "\n",
	}

	properties.Property("same input yields same artifacts", prop.ForAll(
		func(idx []int) bool {
			text := ""
			for _, i := range idx {
				text += fragments[i] + " "
			}
			return sameSets(e.Extract(text), e.Extract(text))
		},
		gen.SliceOf(gen.IntRange(0, len(fragments)-1)),
	))

	properties.TestingRun(t)
}

func TestMergeIsMonotone(t *testing.T) {
	t.Parallel()

	e := newTestExtractor()
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	messages := []string{
		"send to a1b2c@paytm", "call +91 91234 56789", "https://x.tk", "verify now", "nothing here",
	}

	properties.Property("intelligence never shrinks", prop.ForAll(
		func(idx []int) bool {
			acc := domain.NewIntelligence()
			for _, i := range idx {
				prev := acc.Clone()
				acc.Merge(e.Extract(messages[i]))
				if !acc.Superset(prev) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, len(messages)-1)),
	))

	properties.TestingRun(t)
}

func sameSets(a, b domain.ExtractionResult) bool {
	pairs := [][2]domain.StringSet{
		{a.PaymentIDs, b.PaymentIDs},
		{a.BankAccounts, b.BankAccounts},
		{a.PhoneNumbers, b.PhoneNumbers},
		{a.Links, b.Links},
		{a.SuspiciousLinks, b.SuspiciousLinks},
		{a.Emails, b.Emails},
		{a.Keywords, b.Keywords},
	}
	for _, p := range pairs {
		if p[0].Len() != p[1].Len() || !p[0].Superset(p[1]) {
			return false
		}
	}
	return a.TextLength == b.TextLength
}

func TestWithRegion(t *testing.T) {
	t.Parallel()

	e := New(vocab.Default(), WithRegion("us"))
	require.Equal(t, "US", e.region)
	got := e.PhoneNumbers("call 415 555 2671")
	assert.Equal(t, []string{"+14155552671"}, got.Sorted())
}
