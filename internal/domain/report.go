package domain

// ReportIntelligence uses the consumer's field names.
type ReportIntelligence struct {
	BankAccounts       []string `json:"bankAccounts"`
	UPIIDs             []string `json:"upiIds"`
	PhishingLinks      []string `json:"phishingLinks"`
	PhoneNumbers       []string `json:"phoneNumbers"`
	SuspiciousKeywords []string `json:"suspiciousKeywords"`
}

// ReportPayload is the final report delivered at session end.
type ReportPayload struct {
	SessionID              string             `json:"sessionId"`
	ScamDetected           bool               `json:"scamDetected"`
	TotalMessagesExchanged int                `json:"totalMessagesExchanged"`
	ExtractedIntelligence  ReportIntelligence `json:"extractedIntelligence"`
	AgentNotes             string             `json:"agentNotes"`
}

// ReportFromIntelligence renames the accumulated sets to the report fields.
func ReportFromIntelligence(in Intelligence) ReportIntelligence {
	return ReportIntelligence{
		BankAccounts:       in.BankAccounts.Sorted(),
		UPIIDs:             in.PaymentIDs.Sorted(),
		PhishingLinks:      in.Links.Sorted(),
		PhoneNumbers:       in.PhoneNumbers.Sorted(),
		SuspiciousKeywords: in.Keywords.Sorted(),
	}
}
