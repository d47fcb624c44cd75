package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/hfi/pii-anonymizer/internal/mapping"
)

var (
	bucketRecords = []byte("mappings") // hash -> json Record
	bucketTokens  = []byte("tokens")   // token -> hash
)

// BoltStore is a MappingStore backed by an embedded bbolt database.
// Records survive process restarts; upserts run inside a single write
// transaction, so concurrent creators of the same value converge on one
// token.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) the database at path and ensures both
// buckets exist.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open mapping store %q: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketRecords); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketTokens)
		return err
	})
	if err != nil {
		db.Close() //nolint:errcheck // best-effort close on init failure
		return nil, fmt.Errorf("create mapping buckets: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Upsert inserts the candidate or refreshes an existing live record's
// expiry, keeping the existing token.
func (b *BoltStore) Upsert(_ context.Context, rec Record) (Record, error) {
	result := rec
	err := b.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		tokens := tx.Bucket(bucketTokens)
		now := time.Now()

		if raw := records.Get([]byte(rec.Hash)); raw != nil {
			var existing Record
			if err := json.Unmarshal(raw, &existing); err != nil {
				return fmt.Errorf("decode mapping record: %w", err)
			}
			if !existing.Expired(now) {
				if rec.ExpiresAt.After(existing.ExpiresAt) {
					existing.ExpiresAt = rec.ExpiresAt
					updated, err := json.Marshal(existing)
					if err != nil {
						return err
					}
					if err := records.Put([]byte(rec.Hash), updated); err != nil {
						return err
					}
				}
				result = existing
				return nil
			}
			// Dead row: drop its token index entry before replacing.
			if err := tokens.Delete([]byte(existing.Token)); err != nil {
				return err
			}
		}

		raw, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := records.Put([]byte(rec.Hash), raw); err != nil {
			return err
		}
		return tokens.Put([]byte(rec.Token), []byte(rec.Hash))
	})
	if err != nil {
		return Record{}, fmt.Errorf("upsert mapping: %w", err)
	}
	return result, nil
}

// FindByHash retrieves the live record for a lookup hash.
func (b *BoltStore) FindByHash(_ context.Context, hash string) (Record, error) {
	var rec Record
	found := false
	err := b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketRecords).Get([]byte(hash))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, &rec); err != nil {
			return fmt.Errorf("decode mapping record: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	if !found || rec.Expired(time.Now()) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// FindByToken retrieves the live record for an anonymized token.
func (b *BoltStore) FindByToken(ctx context.Context, token string) (Record, error) {
	var hash []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketTokens).Get([]byte(token)); v != nil {
			hash = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	if hash == nil {
		return Record{}, ErrNotFound
	}
	return b.FindByHash(ctx, string(hash))
}

// PurgeExpired deletes all expired records and returns the count.
func (b *BoltStore) PurgeExpired(_ context.Context) (int, error) {
	purged := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		records := tx.Bucket(bucketRecords)
		tokens := tx.Bucket(bucketTokens)
		now := time.Now()

		c := records.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode mapping record: %w", err)
			}
			if !rec.Expired(now) {
				continue
			}
			if err := tokens.Delete([]byte(rec.Token)); err != nil {
				return err
			}
			if err := c.Delete(); err != nil {
				return err
			}
			purged++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("purge expired mappings: %w", err)
	}
	return purged, nil
}

// Stats returns aggregate counts over live records.
func (b *BoltStore) Stats(_ context.Context) (Stats, error) {
	stats := Stats{CountByType: make(map[mapping.FieldType]int)}
	err := b.db.View(func(tx *bolt.Tx) error {
		now := time.Now()
		return tx.Bucket(bucketRecords).ForEach(func(_, v []byte) error {
			var rec Record
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode mapping record: %w", err)
			}
			if rec.Expired(now) {
				return nil
			}
			stats.Total++
			stats.CountByType[rec.FieldType]++
			if stats.Oldest.IsZero() || rec.CreatedAt.Before(stats.Oldest) {
				stats.Oldest = rec.CreatedAt
			}
			if rec.CreatedAt.After(stats.Newest) {
				stats.Newest = rec.CreatedAt
			}
			return nil
		})
	})
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// Close closes the underlying database.
func (b *BoltStore) Close() error {
	return b.db.Close()
}
