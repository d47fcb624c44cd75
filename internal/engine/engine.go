// Package engine implements the PII tokenization engine: reversible
// replacement of labeled PII values with anonymized tokens before text
// crosses a trust boundary, and reconstruction of originals when tokens
// come back. The engine owns the hashing key, a two-way mapping cache,
// and a handle to the persistent mapping store; callers inject all three
// at construction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hfi/pii-anonymizer/internal/audit"
	"github.com/hfi/pii-anonymizer/internal/cache"
	"github.com/hfi/pii-anonymizer/internal/keys"
	"github.com/hfi/pii-anonymizer/internal/leakcheck"
	"github.com/hfi/pii-anonymizer/internal/mapping"
	"github.com/hfi/pii-anonymizer/internal/metrics"
	"github.com/hfi/pii-anonymizer/internal/storage"
	"github.com/hfi/pii-anonymizer/pkg/token"
)

// DefaultTTL is the mapping validity window when none is configured.
const DefaultTTL = 24 * time.Hour

// ErrEmptyValue is returned when a field-level call is made with an
// empty value. Text and record operations skip empty values silently.
var ErrEmptyValue = errors.New("empty value")

// Config carries the engine's collaborators and settings.
type Config struct {
	Keys   *keys.Provider
	Store  storage.MappingStore
	TTL    time.Duration
	Logger zerolog.Logger
	Audit  audit.Recorder
}

// Engine is the PII tokenization engine. Safe for concurrent use: per-call
// state is local, and the shared cache and store are both concurrency-safe.
type Engine struct {
	keys      *keys.Provider
	store     storage.MappingStore
	cache     *cache.MappingCache
	generator *token.Generator
	validator *leakcheck.Validator
	ttl       time.Duration
	logger    zerolog.Logger
	audit     audit.Recorder
}

// New creates an engine from the given configuration.
func New(cfg Config) (*Engine, error) {
	if cfg.Keys == nil {
		return nil, errors.New("engine: key provider is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("engine: mapping store is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NewNopLogger()
	}

	return &Engine{
		keys:      cfg.Keys,
		store:     cfg.Store,
		cache:     cache.New(),
		generator: token.NewGenerator(),
		validator: leakcheck.NewValidator(),
		ttl:       cfg.TTL,
		logger:    cfg.Logger,
		audit:     cfg.Audit,
	}, nil
}

// AnonymizeField obtains the mapping for one labeled PII value, creating
// it if no live mapping exists. Re-creation for a live value keeps its
// token and extends the expiry (upsert semantics); a cache hit within the
// entry's own validity window returns without touching the store.
func (e *Engine) AnonymizeField(ctx context.Context, ft mapping.FieldType, value string) (mapping.Mapping, error) {
	if err := ft.Validate(); err != nil {
		return mapping.Mapping{}, err
	}
	if value == "" {
		return mapping.Mapping{}, ErrEmptyValue
	}

	hash := mapping.LookupHash(e.keys.Key(), ft, value)

	if m, ok := e.cache.GetByHash(hash); ok {
		metrics.CacheHitsTotal.WithLabelValues("value").Inc()
		return m, nil
	}

	// Mint a candidate token and let the store's upsert decide: a live
	// row wins and the candidate is discarded, so concurrent creators of
	// the same value converge on one token.
	tok, err := e.generator.Generate(ft)
	if err != nil {
		return mapping.Mapping{}, err
	}

	now := time.Now()
	candidate := storage.Record{
		ID:        uuid.New(),
		Hash:      hash,
		FieldType: ft,
		Token:     tok,
		CreatedAt: now,
		ExpiresAt: now.Add(e.ttl),
	}

	rec, err := e.store.Upsert(ctx, candidate)
	if err != nil {
		e.audit.Log(&audit.Event{Type: audit.EventStoreError, Error: err.Error()})
		return mapping.Mapping{}, fmt.Errorf("anonymize %s field: %w", ft, err)
	}

	if rec.ID == candidate.ID {
		metrics.MappingsCreatedTotal.WithLabelValues(ft.String()).Inc()
		e.audit.Log(&audit.Event{Type: audit.EventMappingCreated, FieldType: ft.String()})
		e.logger.Debug().Str("field_type", ft.String()).Msg("mapping created")
	} else {
		metrics.MappingsRefreshedTotal.WithLabelValues(ft.String()).Inc()
		e.audit.Log(&audit.Event{Type: audit.EventMappingRefreshed, FieldType: ft.String()})
	}
	metrics.FieldsAnonymizedTotal.WithLabelValues(ft.String()).Inc()

	m := mapping.Mapping{
		ID:              rec.ID,
		FieldType:       rec.FieldType,
		OriginalValue:   value,
		AnonymizedValue: rec.Token,
		CreatedAt:       rec.CreatedAt,
		ExpiresAt:       rec.ExpiresAt,
	}
	e.cache.Put(hash, m)

	return m, nil
}

// LookupByToken returns field-type and timestamp metadata for a live
// token. The returned mapping never carries plaintext: reconstruction
// always flows through the mapping set from the matching anonymize call.
func (e *Engine) LookupByToken(ctx context.Context, tok string) (mapping.Mapping, error) {
	if m, ok := e.cache.GetByToken(tok); ok {
		metrics.CacheHitsTotal.WithLabelValues("token").Inc()
		// Metadata only, even on a cache hit.
		m.OriginalValue = ""
		return m, nil
	}

	rec, err := e.store.FindByToken(ctx, tok)
	if err != nil {
		return mapping.Mapping{}, err
	}

	return mapping.Mapping{
		ID:              rec.ID,
		FieldType:       rec.FieldType,
		AnonymizedValue: rec.Token,
		CreatedAt:       rec.CreatedAt,
		ExpiresAt:       rec.ExpiresAt,
	}, nil
}

// ValidateNoPII scans text for PII-shaped patterns independent of the
// mapping system. Best-effort: a clean result is not a guarantee.
func (e *Engine) ValidateNoPII(text string) leakcheck.Result {
	result := e.validator.Validate(text)

	if !result.Clean {
		byKind := make(map[leakcheck.Kind]int)
		for _, m := range result.Matches {
			byKind[m.Kind]++
			metrics.RecordLeakMatch(string(m.Kind))
		}
		for kind, count := range byKind {
			e.audit.Log(&audit.Event{Type: audit.EventLeakDetected, Kind: string(kind), Count: count})
		}
		e.logger.Warn().Int("matches", len(result.Matches)).Msg("leak validator flagged outbound text")
	}

	return result
}

// CleanupExpiredMappings deletes expired mappings from the store and
// clears the cache wholesale. Safe to call concurrently with ongoing
// traffic: an in-flight lookup racing the purge simply misses and
// creates a fresh mapping.
func (e *Engine) CleanupExpiredMappings(ctx context.Context) (int, error) {
	start := time.Now()

	purged, err := e.store.PurgeExpired(ctx)
	if err != nil {
		e.audit.Log(&audit.Event{Type: audit.EventStoreError, Error: err.Error()})
		return 0, fmt.Errorf("cleanup expired mappings: %w", err)
	}

	e.cache.Purge()

	metrics.MappingsPurgedTotal.Add(float64(purged))
	e.audit.Log(&audit.Event{
		Type:     audit.EventSweepCompleted,
		Count:    purged,
		Duration: float64(time.Since(start).Microseconds()) / 1000,
	})
	e.logger.Info().Int("purged", purged).Msg("expiry sweep completed")

	return purged, nil
}

// Stats returns aggregate counts per field type plus oldest/newest live
// mapping timestamps.
func (e *Engine) Stats(ctx context.Context) (storage.Stats, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return storage.Stats{}, fmt.Errorf("anonymization stats: %w", err)
	}
	metrics.LiveMappings.Set(float64(stats.Total))
	return stats, nil
}
