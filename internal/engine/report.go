package engine

import (
	"fmt"
	"strings"

	"github.com/ashureev/decoy/internal/domain"
)

// BuildReport assembles the final report for sess.
func BuildReport(sess *domain.Session) domain.ReportPayload {
	return domain.ReportPayload{
		SessionID:              sess.ID,
		ScamDetected:           sess.ThreatConfirmed,
		TotalMessagesExchanged: sess.TurnNumber,
		ExtractedIntelligence:  domain.ReportFromIntelligence(sess.Intel),
		AgentNotes:             AgentNotes(sess),
	}
}

// AgentNotes renders the human-readable summary sent with the report.
func AgentNotes(sess *domain.Session) string {
	parts := []string{fmt.Sprintf("Scam probability: %.1f%%. Engaged for %d turns.",
		sess.PeakScore*100, sess.TurnNumber)}

	if ids := sess.Intel.PaymentIDs.Sorted(); len(ids) > 0 {
		parts = append(parts, "UPI IDs: "+strings.Join(ids, ", "))
	}
	if banks := sess.Intel.BankAccounts.Sorted(); len(banks) > 0 {
		parts = append(parts, "Bank accounts: "+strings.Join(first(banks, 3), ", "))
	}
	if phones := sess.Intel.PhoneNumbers.Sorted(); len(phones) > 0 {
		parts = append(parts, "Phone numbers: "+strings.Join(phones, ", "))
	}
	if n := sess.Intel.Links.Len(); n > 0 {
		parts = append(parts, fmt.Sprintf("URLs detected: %d", n))
	}
	if kws := sess.Intel.Keywords.Sorted(); len(kws) > 0 {
		parts = append(parts, "Keywords: "+strings.Join(first(kws, 5), ", "))
	}
	if len(parts) == 1 {
		parts = append(parts, "No actionable intelligence extracted yet.")
	}
	return strings.Join(parts, " | ")
}

func first(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
