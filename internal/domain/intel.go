package domain

import (
	"encoding/json"
	"sort"
	"time"
)

// StringSet is a set of strings keyed by exact value.
// It encodes to JSON as a sorted array so persisted documents are stable.
type StringSet map[string]struct{}

// NewStringSet builds a set from the given values.
func NewStringSet(values ...string) StringSet {
	s := make(StringSet, len(values))
	for _, v := range values {
		s[v] = struct{}{}
	}
	return s
}

// Add inserts v and reports whether it was not already present.
func (s StringSet) Add(v string) bool {
	if _, ok := s[v]; ok {
		return false
	}
	s[v] = struct{}{}
	return true
}

// Has reports whether v is in the set.
func (s StringSet) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Len returns the number of members.
func (s StringSet) Len() int {
	return len(s)
}

// Union adds every member of other to s and returns how many were new.
func (s StringSet) Union(other StringSet) int {
	added := 0
	for v := range other {
		if s.Add(v) {
			added++
		}
	}
	return added
}

// Superset reports whether s contains every member of other.
func (s StringSet) Superset(other StringSet) bool {
	for v := range other {
		if !s.Has(v) {
			return false
		}
	}
	return true
}

// Sorted returns the members in lexical order.
func (s StringSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (s StringSet) Clone() StringSet {
	c := make(StringSet, len(s))
	for v := range s {
		c[v] = struct{}{}
	}
	return c
}

// MarshalJSON encodes the set as a sorted array.
func (s StringSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON decodes a JSON array into the set.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*s = NewStringSet(values...)
	return nil
}

// ExtractionResult is the output of one extraction pass over one message.
type ExtractionResult struct {
	PaymentIDs      StringSet `json:"payment_ids"`
	BankAccounts    StringSet `json:"bank_accounts"`
	PhoneNumbers    StringSet `json:"phone_numbers"`
	Links           StringSet `json:"links"`
	SuspiciousLinks StringSet `json:"suspicious_links"`
	Emails          StringSet `json:"emails"`
	Keywords        StringSet `json:"keywords"`
	ExtractedAt     time.Time `json:"extracted_at"`
	TextLength      int       `json:"text_length"`
}

// HasPaymentArtifact reports whether a payment handle or account number was found.
func (r ExtractionResult) HasPaymentArtifact() bool {
	return r.PaymentIDs.Len() > 0 || r.BankAccounts.Len() > 0
}

// Empty reports whether nothing was extracted.
func (r ExtractionResult) Empty() bool {
	return r.PaymentIDs.Len() == 0 && r.BankAccounts.Len() == 0 &&
		r.PhoneNumbers.Len() == 0 && r.Links.Len() == 0 &&
		r.Emails.Len() == 0 && r.Keywords.Len() == 0
}

// Intelligence holds the deduplicated artifacts accumulated over a session.
// Sets only ever grow.
type Intelligence struct {
	PaymentIDs   StringSet `json:"payment_ids"`
	BankAccounts StringSet `json:"bank_accounts"`
	PhoneNumbers StringSet `json:"phone_numbers"`
	Links        StringSet `json:"links"`
	Emails       StringSet `json:"emails"`
	Keywords     StringSet `json:"keywords"`
}

// NewIntelligence returns empty accumulators.
func NewIntelligence() Intelligence {
	return Intelligence{
		PaymentIDs:   StringSet{},
		BankAccounts: StringSet{},
		PhoneNumbers: StringSet{},
		Links:        StringSet{},
		Emails:       StringSet{},
		Keywords:     StringSet{},
	}
}

// Merge unions one extraction result into the accumulators and returns the
// number of previously unseen artifacts.
func (in *Intelligence) Merge(r ExtractionResult) int {
	in.Ensure()
	added := in.PaymentIDs.Union(r.PaymentIDs)
	added += in.BankAccounts.Union(r.BankAccounts)
	added += in.PhoneNumbers.Union(r.PhoneNumbers)
	added += in.Links.Union(r.Links)
	added += in.Emails.Union(r.Emails)
	added += in.Keywords.Union(r.Keywords)
	return added
}

// Superset reports whether every set in in contains the matching set in prev.
func (in Intelligence) Superset(prev Intelligence) bool {
	return in.PaymentIDs.Superset(prev.PaymentIDs) &&
		in.BankAccounts.Superset(prev.BankAccounts) &&
		in.PhoneNumbers.Superset(prev.PhoneNumbers) &&
		in.Links.Superset(prev.Links) &&
		in.Emails.Superset(prev.Emails) &&
		in.Keywords.Superset(prev.Keywords)
}

// Clone returns a deep copy.
func (in Intelligence) Clone() Intelligence {
	return Intelligence{
		PaymentIDs:   in.PaymentIDs.Clone(),
		BankAccounts: in.BankAccounts.Clone(),
		PhoneNumbers: in.PhoneNumbers.Clone(),
		Links:        in.Links.Clone(),
		Emails:       in.Emails.Clone(),
		Keywords:     in.Keywords.Clone(),
	}
}

// Total counts artifacts across all categories.
func (in Intelligence) Total() int {
	return in.PaymentIDs.Len() + in.BankAccounts.Len() + in.PhoneNumbers.Len() +
		in.Links.Len() + in.Emails.Len() + in.Keywords.Len()
}

// Ensure allocates any nil set, which happens for documents decoded from
// older records that omitted a category.
func (in *Intelligence) Ensure() {
	if in.PaymentIDs == nil {
		in.PaymentIDs = StringSet{}
	}
	if in.BankAccounts == nil {
		in.BankAccounts = StringSet{}
	}
	if in.PhoneNumbers == nil {
		in.PhoneNumbers = StringSet{}
	}
	if in.Links == nil {
		in.Links = StringSet{}
	}
	if in.Emails == nil {
		in.Emails = StringSet{}
	}
	if in.Keywords == nil {
		in.Keywords = StringSet{}
	}
}
