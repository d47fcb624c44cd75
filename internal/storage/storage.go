// Package storage persists PII mappings keyed by a non-reversible lookup
// hash. Plaintext values never enter this package: a Record carries only
// the hash, the anonymized token, and timestamps.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/hfi/pii-anonymizer/internal/mapping"
)

// ErrNotFound is returned when no live record matches a lookup. Expired
// records are reported as not found.
var ErrNotFound = errors.New("mapping not found")

// Record is the persisted shape of a mapping.
type Record struct {
	ID        uuid.UUID         `json:"id"`
	Hash      string            `json:"hash"`
	FieldType mapping.FieldType `json:"field_type"`
	Token     string            `json:"token"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Expired reports whether the record's validity window has passed.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Stats summarizes the live mapping population.
type Stats struct {
	Total       int                       `json:"total"`
	CountByType map[mapping.FieldType]int `json:"count_by_type"`
	// Oldest and Newest are CreatedAt bounds over live records; zero when
	// the store holds no live mappings.
	Oldest time.Time `json:"oldest,omitempty"`
	Newest time.Time `json:"newest,omitempty"`
}

// MappingStore defines the persistence contract for mappings.
type MappingStore interface {
	// Upsert inserts the candidate record, or, if a live record with the
	// same hash already exists, extends that record's expiry and returns
	// it with its original token. The returned record's token is
	// authoritative: under concurrent creation of the same value all
	// callers converge on one token.
	Upsert(ctx context.Context, rec Record) (Record, error)

	// FindByHash retrieves the live record for a lookup hash.
	FindByHash(ctx context.Context, hash string) (Record, error)

	// FindByToken retrieves the live record for an anonymized token.
	// Useful only for field-type and timestamp metadata; no plaintext
	// is ever recoverable this way.
	FindByToken(ctx context.Context, token string) (Record, error)

	// PurgeExpired deletes all expired records and returns the count.
	PurgeExpired(ctx context.Context) (int, error)

	// Stats returns aggregate counts over live records.
	Stats(ctx context.Context) (Stats, error)

	// Close releases any resources.
	Close() error
}
