// Package token generates anonymized placeholder tokens for PII values.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/hfi/pii-anonymizer/internal/mapping"
)

// randLen is the number of hex characters in a token's random suffix.
// 8 hex chars = 32 bits of entropy; the odds of two generations colliding
// are ~1/2^32 per pair, accepted at this system's scale without a store
// re-check.
const randLen = 8

// prefixes maps each field type to its uppercase token tag.
var prefixes = map[mapping.FieldType]string{
	mapping.FieldName:    "PERSON",
	mapping.FieldAddress: "ADDRESS",
	mapping.FieldSSN:     "SSN",
	mapping.FieldPhone:   "PHONE",
	mapping.FieldEmail:   "EMAIL",
	mapping.FieldOther:   "PII",
}

// tokenPattern matches any token this generator can produce. The shape is
// deliberately unlike natural text, so tokens never collide with ordinary
// prose they are substituted into.
var tokenPattern = regexp.MustCompile(`\b(PERSON|ADDRESS|SSN|PHONE|EMAIL|PII)_[0-9A-F]{8}\b`)

// Generator produces anonymized tokens of the form "<PREFIX>_<RANDOM>".
type Generator struct{}

// NewGenerator creates a token generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate mints a new token for the given field type: a fixed uppercase
// prefix plus 8 hex characters from a cryptographically secure source.
func (g *Generator) Generate(ft mapping.FieldType) (string, error) {
	prefix, ok := prefixes[ft]
	if !ok {
		return "", fmt.Errorf("generate token: %w: %q", mapping.ErrInvalidFieldType, ft)
	}

	buf := make([]byte, randLen/2)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return prefix + "_" + strings.ToUpper(hex.EncodeToString(buf)), nil
}

// Prefix returns the token tag used for a field type, or "PII" for
// unknown types.
func Prefix(ft mapping.FieldType) string {
	if p, ok := prefixes[ft]; ok {
		return p
	}
	return "PII"
}

// IsToken reports whether s is shaped like a generated token.
func IsToken(s string) bool {
	return tokenPattern.MatchString(s)
}

// FindAll returns every token-shaped substring in text.
func FindAll(text string) []string {
	return tokenPattern.FindAllString(text, -1)
}
