package engine

import (
	"context"
	"errors"
	"time"

	"github.com/hfi/pii-anonymizer/internal/audit"
	"github.com/hfi/pii-anonymizer/internal/mapping"
	"github.com/hfi/pii-anonymizer/internal/metrics"
)

// RecordField binds a record key to the PII category of its value. The
// caller passes an explicit list rather than the engine sniffing field
// shapes at runtime.
type RecordField struct {
	Key  string
	Type mapping.FieldType
}

// DefaultRecordFields is the sensitive-key set for loan records.
var DefaultRecordFields = []RecordField{
	{Key: "borrower_name", Type: mapping.FieldName},
	{Key: "co_borrower_name", Type: mapping.FieldName},
	{Key: "property_address", Type: mapping.FieldAddress},
	{Key: "ssn", Type: mapping.FieldSSN},
	{Key: "phone", Type: mapping.FieldPhone},
	{Key: "email", Type: mapping.FieldEmail},
}

// RecordResult is the outcome of anonymizing a batch of records.
type RecordResult struct {
	// Records holds shallow copies with each sensitive field's value
	// replaced whole by its token.
	Records []map[string]string
	// Mappings lists every distinct mapping used across the batch.
	Mappings []mapping.Mapping
}

// AnonymizeRecords replaces the configured sensitive fields of each
// record with anonymized tokens. This is whole-value field replacement,
// not substring substitution: each field is rewritten independently and
// never searched for inside other fields, so no ordering rule applies.
// A nil fields list uses DefaultRecordFields. Empty or absent fields are
// skipped, not errors.
func (e *Engine) AnonymizeRecords(ctx context.Context, records []map[string]string, fields []RecordField) (RecordResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperationDuration("anonymize_records", time.Since(start).Seconds())
	}()

	if fields == nil {
		fields = DefaultRecordFields
	}

	result := RecordResult{
		Records:  make([]map[string]string, 0, len(records)),
		Mappings: []mapping.Mapping{},
	}
	seen := make(map[string]bool)

	for _, rec := range records {
		clone := make(map[string]string, len(rec))
		for k, v := range rec {
			clone[k] = v
		}

		for _, f := range fields {
			value, ok := clone[f.Key]
			if !ok || value == "" {
				continue
			}

			m, err := e.AnonymizeField(ctx, f.Type, value)
			if err != nil {
				if errors.Is(err, ErrEmptyValue) {
					continue
				}
				return RecordResult{}, err
			}
			clone[f.Key] = m.AnonymizedValue

			key := f.Type.String() + "\x1f" + value
			if !seen[key] {
				seen[key] = true
				result.Mappings = append(result.Mappings, m)
			}
		}

		result.Records = append(result.Records, clone)
	}

	e.audit.Log(&audit.Event{
		Type:     audit.EventRecordsAnonymized,
		Count:    len(result.Records),
		Duration: float64(time.Since(start).Microseconds()) / 1000,
	})

	return result, nil
}
