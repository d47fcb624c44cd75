package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hfi/pii-anonymizer/internal/mapping"
)

func TestMemoryStore_Interface(t *testing.T) {
	var _ MappingStore = (*MemoryStore)(nil)
}

func TestMemoryStore_Suite(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	runStoreSuite(t, store)
}

func TestMemoryStore_ConcurrentUpsert(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	// Many goroutines racing to create the same hash must all converge on
	// a single token.
	const workers = 16
	tokens := make([]string, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := newTestRecord("shared-hash", fmt.Sprintf("PERSON_%08X", i), mapping.FieldName, time.Hour)
			got, err := store.Upsert(ctx, rec)
			if err != nil {
				t.Errorf("Upsert() error: %v", err)
				return
			}
			tokens[i] = got.Token
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if tokens[i] != tokens[0] {
			t.Fatalf("concurrent upserts diverged: %q vs %q", tokens[i], tokens[0])
		}
	}
}

func TestMemoryStore_PurgeRace(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()
	ctx := context.Background()

	rec := newTestRecord("race-hash", "PII_12345678", mapping.FieldOther, time.Hour)
	if _, err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert() error: %v", err)
	}

	// Lookups racing a purge must either hit or miss, never corrupt.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.FindByHash(ctx, "race-hash")     //nolint:errcheck
				store.FindByToken(ctx, "PII_12345678") //nolint:errcheck
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 100; j++ {
			if _, err := store.PurgeExpired(ctx); err != nil {
				t.Errorf("PurgeExpired() error: %v", err)
			}
		}
	}()
	wg.Wait()
}
