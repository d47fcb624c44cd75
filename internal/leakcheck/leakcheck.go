// Package leakcheck scans outbound text for PII-shaped patterns as a
// defense-in-depth check, independent of the mapping system. It is
// best-effort: it knows nothing about non-US formats or unusual
// punctuation, and look-alike numeric strings can trip it. A clean
// result is a signal, not a guarantee.
package leakcheck

import (
	"regexp"
)

// Kind labels the category of a pattern match.
type Kind string

const (
	KindSSN     Kind = "ssn"
	KindPhone   Kind = "phone"
	KindEmail   Kind = "email"
	KindAddress Kind = "address"
)

// Match is one PII-shaped substring found in the scanned text.
type Match struct {
	Kind  Kind   `json:"kind"`
	Value string `json:"value"`
}

// Result is the outcome of a leak scan.
type Result struct {
	Clean   bool    `json:"clean"`
	Matches []Match `json:"matches,omitempty"`
}

// rule pairs a compiled pattern with the kind it detects.
type rule struct {
	kind    Kind
	pattern *regexp.Regexp
}

// Validator applies a fixed battery of PII heuristics.
type Validator struct {
	rules []rule
}

// NewValidator creates a validator with the default US-format rule set.
func NewValidator() *Validator {
	return &Validator{
		rules: []rule{
			{KindSSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
			{KindPhone, regexp.MustCompile(`\b\d{3}-\d{3}-\d{4}\b`)},
			{KindEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
			{KindAddress, regexp.MustCompile(`(?i)\b\d+\s+[A-Za-z\s]+(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr|Court|Ct)\b`)},
		},
	}
}

// Validate scans text against every rule and reports all matches.
func (v *Validator) Validate(text string) Result {
	var matches []Match
	for _, r := range v.rules {
		for _, m := range r.pattern.FindAllString(text, -1) {
			matches = append(matches, Match{Kind: r.kind, Value: m})
		}
	}

	return Result{
		Clean:   len(matches) == 0,
		Matches: matches,
	}
}
