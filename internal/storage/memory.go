package storage

import (
	"context"
	"sync"
	"time"

	"github.com/hfi/pii-anonymizer/internal/mapping"
)

// MemoryStore is an in-memory implementation of MappingStore, used in
// tests and single-process deployments where durability is not needed.
type MemoryStore struct {
	mu         sync.RWMutex
	records    map[string]Record // keyed by lookup hash
	tokenIndex map[string]string // token -> hash reverse lookup
}

// NewMemoryStore creates a new in-memory mapping store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:    make(map[string]Record),
		tokenIndex: make(map[string]string),
	}
}

// Upsert inserts the candidate or refreshes an existing live record's
// expiry, keeping the existing token.
func (m *MemoryStore) Upsert(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.records[rec.Hash]; ok && !existing.Expired(now) {
		if rec.ExpiresAt.After(existing.ExpiresAt) {
			existing.ExpiresAt = rec.ExpiresAt
			m.records[rec.Hash] = existing
		}
		return existing, nil
	}

	// Absent or dead row: the candidate wins. A dead row's token index
	// entry is dropped so stale tokens cannot resolve.
	if old, ok := m.records[rec.Hash]; ok {
		delete(m.tokenIndex, old.Token)
	}
	m.records[rec.Hash] = rec
	m.tokenIndex[rec.Token] = rec.Hash

	return rec, nil
}

// FindByHash retrieves the live record for a lookup hash.
func (m *MemoryStore) FindByHash(_ context.Context, hash string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[hash]
	if !ok || rec.Expired(time.Now()) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// FindByToken retrieves the live record for an anonymized token.
func (m *MemoryStore) FindByToken(_ context.Context, token string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hash, ok := m.tokenIndex[token]
	if !ok {
		return Record{}, ErrNotFound
	}
	rec, ok := m.records[hash]
	if !ok || rec.Expired(time.Now()) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// PurgeExpired deletes all expired records and returns the count.
func (m *MemoryStore) PurgeExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	purged := 0
	for hash, rec := range m.records {
		if rec.Expired(now) {
			delete(m.tokenIndex, rec.Token)
			delete(m.records, hash)
			purged++
		}
	}

	return purged, nil
}

// Stats returns aggregate counts over live records.
func (m *MemoryStore) Stats(_ context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{CountByType: make(map[mapping.FieldType]int)}
	now := time.Now()
	for _, rec := range m.records {
		if rec.Expired(now) {
			continue
		}
		stats.Total++
		stats.CountByType[rec.FieldType]++
		if stats.Oldest.IsZero() || rec.CreatedAt.Before(stats.Oldest) {
			stats.Oldest = rec.CreatedAt
		}
		if rec.CreatedAt.After(stats.Newest) {
			stats.Newest = rec.CreatedAt
		}
	}

	return stats, nil
}

// Close releases resources; a no-op for the in-memory store.
func (m *MemoryStore) Close() error {
	return nil
}
