// Package mapping defines the core domain model for PII tokenization:
// the field-type taxonomy, the Mapping entity linking one original value
// to one anonymized token, and the keyed lookup hash used to find a
// mapping without ever storing its plaintext.
package mapping

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/google/uuid"
)

// FieldType is the semantic category of a PII value.
type FieldType string

const (
	FieldName    FieldType = "name"
	FieldAddress FieldType = "address"
	FieldSSN     FieldType = "ssn"
	FieldPhone   FieldType = "phone"
	FieldEmail   FieldType = "email"
	FieldOther   FieldType = "other"
)

// ErrInvalidFieldType is returned when a field type outside the known set is used.
var ErrInvalidFieldType = errors.New("invalid field type")

// Validate checks that the field type is one of the known categories.
func (f FieldType) Validate() error {
	switch f {
	case FieldName, FieldAddress, FieldSSN, FieldPhone, FieldEmail, FieldOther:
		return nil
	default:
		return ErrInvalidFieldType
	}
}

// String returns the string representation of the field type.
func (f FieldType) String() string {
	return string(f)
}

// Mapping links one original PII value (for one field type) to one
// anonymized token, with a validity window. OriginalValue exists only in
// memory; the persistent store holds a keyed hash instead.
type Mapping struct {
	ID              uuid.UUID
	FieldType       FieldType
	OriginalValue   string
	AnonymizedValue string
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

// Expired reports whether the mapping's validity window has passed at the
// given instant.
func (m *Mapping) Expired(now time.Time) bool {
	return !now.Before(m.ExpiresAt)
}

// Live reports whether the mapping is valid for lookup at the given instant.
func (m *Mapping) Live(now time.Time) bool {
	return !m.Expired(now)
}

// hashSeparator keeps (fieldType, value) pairs from colliding across type
// boundaries: 0x1f never occurs in a field type name.
const hashSeparator = 0x1f

// LookupHash computes the deterministic, non-reversible store key for a
// (fieldType, originalValue) pair: HMAC-SHA256 under the process key,
// hex-encoded. The same value under a different field type hashes
// differently, so type-qualified mappings stay distinct.
func LookupHash(key []byte, ft FieldType, value string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(ft))
	mac.Write([]byte{hashSeparator})
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}
