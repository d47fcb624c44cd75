package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hfi/pii-anonymizer/internal/mapping"
)

// RedisStore is a Redis-based implementation of MappingStore for
// deployments that share one mapping set across processes. Expiry is
// enforced twice: record TTLs on the Redis side and the ExpiresAt check
// on read.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a new Redis-based mapping store.
func NewRedisStore(address, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: "pii-mapping:",
	}, nil
}

func (r *RedisStore) hashKey(hash string) string   { return r.prefix + "h:" + hash }
func (r *RedisStore) tokenKey(token string) string { return r.prefix + "t:" + token }

// Upsert inserts the candidate or refreshes an existing live record's
// expiry, keeping the existing token. SetNX on the hash key makes
// concurrent creators of the same value converge on whichever record
// landed first.
func (r *RedisStore) Upsert(ctx context.Context, rec Record) (Record, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return Record{}, err
	}

	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return Record{}, fmt.Errorf("upsert mapping: candidate already expired")
	}

	inserted, err := r.client.SetNX(ctx, r.hashKey(rec.Hash), raw, ttl).Result()
	if err != nil {
		return Record{}, fmt.Errorf("upsert mapping: %w", err)
	}
	if inserted {
		if err := r.client.Set(ctx, r.tokenKey(rec.Token), rec.Hash, ttl).Err(); err != nil {
			return Record{}, fmt.Errorf("upsert mapping token index: %w", err)
		}
		return rec, nil
	}

	// Lost the race or the row already existed: refresh it and return the
	// existing token.
	existing, err := r.FindByHash(ctx, rec.Hash)
	if errors.Is(err, ErrNotFound) {
		// The row expired between SetNX and the read. Take its place.
		if err := r.client.Set(ctx, r.hashKey(rec.Hash), raw, ttl).Err(); err != nil {
			return Record{}, fmt.Errorf("upsert mapping: %w", err)
		}
		if err := r.client.Set(ctx, r.tokenKey(rec.Token), rec.Hash, ttl).Err(); err != nil {
			return Record{}, fmt.Errorf("upsert mapping token index: %w", err)
		}
		return rec, nil
	}
	if err != nil {
		return Record{}, err
	}

	if rec.ExpiresAt.After(existing.ExpiresAt) {
		existing.ExpiresAt = rec.ExpiresAt
		updated, err := json.Marshal(existing)
		if err != nil {
			return Record{}, err
		}
		if err := r.client.Set(ctx, r.hashKey(existing.Hash), updated, ttl).Err(); err != nil {
			return Record{}, fmt.Errorf("refresh mapping: %w", err)
		}
		if err := r.client.Expire(ctx, r.tokenKey(existing.Token), ttl).Err(); err != nil {
			return Record{}, fmt.Errorf("refresh mapping token index: %w", err)
		}
	}

	return existing, nil
}

// FindByHash retrieves the live record for a lookup hash.
func (r *RedisStore) FindByHash(ctx context.Context, hash string) (Record, error) {
	raw, err := r.client.Get(ctx, r.hashKey(hash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("find mapping by hash: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("decode mapping record: %w", err)
	}
	if rec.Expired(time.Now()) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// FindByToken retrieves the live record for an anonymized token.
func (r *RedisStore) FindByToken(ctx context.Context, token string) (Record, error) {
	hash, err := r.client.Get(ctx, r.tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("find mapping by token: %w", err)
	}
	return r.FindByHash(ctx, hash)
}

// PurgeExpired scans for records whose ExpiresAt has passed and deletes
// them. Redis TTLs usually get there first, so the returned count is the
// number of rows the sweep itself removed.
func (r *RedisStore) PurgeExpired(ctx context.Context) (int, error) {
	purged := 0
	now := time.Now()

	iter := r.client.Scan(ctx, 0, r.prefix+"h:*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := r.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return purged, fmt.Errorf("purge expired mappings: %w", err)
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return purged, fmt.Errorf("decode mapping record: %w", err)
		}
		if !rec.Expired(now) {
			continue
		}
		if err := r.client.Del(ctx, key, r.tokenKey(rec.Token)).Err(); err != nil {
			return purged, fmt.Errorf("purge expired mappings: %w", err)
		}
		purged++
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("purge expired mappings: %w", err)
	}

	return purged, nil
}

// Stats returns aggregate counts over live records.
func (r *RedisStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{CountByType: make(map[mapping.FieldType]int)}
	now := time.Now()

	iter := r.client.Scan(ctx, 0, r.prefix+"h:*", 100).Iterator()
	for iter.Next(ctx) {
		raw, err := r.client.Get(ctx, iter.Val()).Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return Stats{}, fmt.Errorf("mapping stats: %w", err)
		}

		var rec Record
		if err := json.Unmarshal(raw, &rec); err != nil {
			return Stats{}, fmt.Errorf("decode mapping record: %w", err)
		}
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
	if err := iter.Err(); err != nil {
		return Stats{}, fmt.Errorf("mapping stats: %w", err)
	}

	return stats, nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
