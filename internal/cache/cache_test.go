package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hfi/pii-anonymizer/internal/mapping"
)

func newTestMapping(value, token string, ttl time.Duration) mapping.Mapping {
	now := time.Now()
	return mapping.Mapping{
		ID:              uuid.New(),
		FieldType:       mapping.FieldName,
		OriginalValue:   value,
		AnonymizedValue: token,
		CreatedAt:       now,
		ExpiresAt:       now.Add(ttl),
	}
}

func TestMappingCache_PutGet(t *testing.T) {
	c := New()
	m := newTestMapping("John Smith", "PERSON_A1B2C3D4", time.Hour)

	c.Put("hash-1", m)

	got, ok := c.GetByHash("hash-1")
	if !ok {
		t.Fatal("GetByHash() miss for live entry")
	}
	if got.AnonymizedValue != m.AnonymizedValue {
		t.Errorf("GetByHash() token = %q, want %q", got.AnonymizedValue, m.AnonymizedValue)
	}

	got, ok = c.GetByToken("PERSON_A1B2C3D4")
	if !ok {
		t.Fatal("GetByToken() miss for live entry")
	}
	if got.OriginalValue != "John Smith" {
		t.Errorf("GetByToken() value = %q, want 'John Smith'", got.OriginalValue)
	}
}

func TestMappingCache_Miss(t *testing.T) {
	c := New()

	if _, ok := c.GetByHash("nope"); ok {
		t.Error("GetByHash() hit for absent entry")
	}
	if _, ok := c.GetByToken("PERSON_00000000"); ok {
		t.Error("GetByToken() hit for absent entry")
	}
}

func TestMappingCache_LazyExpiry(t *testing.T) {
	c := New()
	m := newTestMapping("Jane Doe", "PERSON_FFFF0000", 10*time.Millisecond)
	c.Put("hash-2", m)

	if _, ok := c.GetByHash("hash-2"); !ok {
		t.Fatal("GetByHash() miss before expiry")
	}

	time.Sleep(20 * time.Millisecond)

	if _, ok := c.GetByHash("hash-2"); ok {
		t.Error("GetByHash() hit for expired entry")
	}
	if _, ok := c.GetByToken("PERSON_FFFF0000"); ok {
		t.Error("GetByToken() hit for expired entry")
	}
}

func TestMappingCache_Purge(t *testing.T) {
	c := New()
	c.Put("hash-3", newTestMapping("a", "PERSON_AAAAAAAA", time.Hour))
	c.Put("hash-4", newTestMapping("b", "PERSON_BBBBBBBB", time.Hour))

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}

	c.Purge()

	if c.Len() != 0 {
		t.Errorf("Len() after Purge() = %d, want 0", c.Len())
	}
	if _, ok := c.GetByToken("PERSON_AAAAAAAA"); ok {
		t.Error("GetByToken() hit after Purge()")
	}
}

func TestMappingCache_Concurrent(t *testing.T) {
	c := New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				hash := fmt.Sprintf("hash-%d-%d", i, j)
				tok := fmt.Sprintf("PERSON_%04X%04X", i, j)
				c.Put(hash, newTestMapping("v", tok, time.Hour))
				c.GetByHash(hash)
				c.GetByToken(tok)
				if j%25 == 0 {
					c.Purge()
				}
			}
		}(i)
	}
	wg.Wait()
}
