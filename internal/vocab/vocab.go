// Package vocab holds the immutable word lists used by extraction and scoring.
package vocab

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

var (
	errNoProviders = errors.New("payment_providers cannot be empty")
	errNoSuffixes  = errors.New("suspicious_suffixes cannot be empty")
	errNoKeywords  = errors.New("keywords cannot be empty")
	errNoSenders   = errors.New("legitimate_senders cannot be empty")
)

// Vocabulary is a loaded set of word lists. Values are read-only after load.
type Vocabulary struct {
	paymentProviders   []string
	suspiciousSuffixes []string
	keywords           []string
	legitimateSenders  []string
}

type document struct {
	PaymentProviders   []string `yaml:"payment_providers"`
	SuspiciousSuffixes []string `yaml:"suspicious_suffixes"`
	Keywords           []string `yaml:"keywords"`
	LegitimateSenders  []string `yaml:"legitimate_senders"`
}

// Default returns the embedded vocabulary.
func Default() *Vocabulary {
	v, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded vocabulary is invalid: %v", err))
	}
	return v
}

// Load reads a vocabulary file. An override file replaces every list.
func Load(path string) (*Vocabulary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	v, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary %s: %w", path, err)
	}
	return v, nil
}

// LoadOrDefault returns Default when path is empty.
func LoadOrDefault(path string) (*Vocabulary, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Parse decodes and validates a YAML vocabulary document.
func Parse(data []byte) (*Vocabulary, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode vocabulary: %w", err)
	}
	v := &Vocabulary{
		paymentProviders:   normalize(doc.PaymentProviders, strings.ToLower),
		suspiciousSuffixes: normalize(doc.SuspiciousSuffixes, strings.ToLower),
		keywords:           normalize(doc.Keywords, strings.ToLower),
		legitimateSenders:  normalize(doc.LegitimateSenders, strings.ToUpper),
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Validate rejects vocabularies with an empty list.
func (v *Vocabulary) Validate() error {
	switch {
	case len(v.paymentProviders) == 0:
		return errNoProviders
	case len(v.suspiciousSuffixes) == 0:
		return errNoSuffixes
	case len(v.keywords) == 0:
		return errNoKeywords
	case len(v.legitimateSenders) == 0:
		return errNoSenders
	}
	return nil
}

// PaymentProviders returns the lower-cased payment handle suffixes.
func (v *Vocabulary) PaymentProviders() []string { return clone(v.paymentProviders) }

// SuspiciousSuffixes returns the lower-cased host suffixes, each starting with a dot.
func (v *Vocabulary) SuspiciousSuffixes() []string { return clone(v.suspiciousSuffixes) }

// Keywords returns the lower-cased scam keywords and phrases.
func (v *Vocabulary) Keywords() []string { return clone(v.keywords) }

// LegitimateSenders returns the upper-cased sender allow-list.
func (v *Vocabulary) LegitimateSenders() []string { return clone(v.legitimateSenders) }

func normalize(in []string, fold func(string) string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = fold(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
