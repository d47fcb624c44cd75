package engine

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hfi/pii-anonymizer/internal/audit"
	"github.com/hfi/pii-anonymizer/internal/mapping"
	"github.com/hfi/pii-anonymizer/internal/metrics"
)

// Field is one labeled PII value extracted by the caller, carrying the
// verbatim substring expected to appear in the text.
type Field struct {
	Type  mapping.FieldType
	Value string
}

// TextResult is the outcome of anonymizing a body of text.
type TextResult struct {
	// Text is the rewritten text with every PII occurrence replaced.
	Text string
	// Mappings lists the mappings in substitution order (longest original
	// first). A value with zero occurrences still appears: its mapping
	// exists for reuse elsewhere even though it contributed nothing here.
	Mappings []mapping.Mapping
}

// RestoreResult is the outcome of de-anonymizing a body of text.
type RestoreResult struct {
	// Text is the reconstructed text.
	Text string
	// UsedIDs lists the IDs of mappings whose token actually appeared.
	UsedIDs []uuid.UUID
}

// literalPattern builds a case-insensitive pattern matching the literal
// value. QuoteMeta keeps regex metacharacters in PII values (a "+" in a
// phone number) from changing what the pattern matches; a compile failure
// after escaping fails the operation rather than risking a partial rewrite.
func literalPattern(value string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(value))
	if err != nil {
		return nil, fmt.Errorf("build substitution pattern: %w", err)
	}
	return re, nil
}

// AnonymizeText replaces every occurrence of each labeled field value in
// text with its anonymized token. Substitution runs longest-value-first:
// a shorter value that is a substring of a longer one (a first name
// inside a full name) must never be substituted first, or the longer
// occurrence would be partially rewritten. Matching is case-insensitive.
func (e *Engine) AnonymizeText(ctx context.Context, text string, fields []Field) (TextResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperationDuration("anonymize_text", time.Since(start).Seconds())
	}()

	result := TextResult{Text: text, Mappings: []mapping.Mapping{}}

	// Every field gets its mapping up front, even values that never occur
	// in the text. Duplicate (type, value) pairs collapse to one mapping.
	seen := make(map[string]bool)
	for _, f := range fields {
		if f.Value == "" {
			continue
		}
		key := f.Type.String() + "\x1f" + f.Value
		if seen[key] {
			continue
		}
		seen[key] = true

		m, err := e.AnonymizeField(ctx, f.Type, f.Value)
		if err != nil {
			return TextResult{}, err
		}
		result.Mappings = append(result.Mappings, m)
	}

	sort.SliceStable(result.Mappings, func(i, j int) bool {
		return len(result.Mappings[i].OriginalValue) > len(result.Mappings[j].OriginalValue)
	})

	substituted := 0
	for _, m := range result.Mappings {
		re, err := literalPattern(m.OriginalValue)
		if err != nil {
			return TextResult{}, err
		}
		matches := len(re.FindAllStringIndex(result.Text, -1))
		if matches == 0 {
			continue
		}
		result.Text = re.ReplaceAllLiteralString(result.Text, m.AnonymizedValue)
		substituted += matches
	}

	metrics.SubstitutionsTotal.Add(float64(substituted))
	e.audit.Log(&audit.Event{
		Type:     audit.EventTextAnonymized,
		Count:    len(result.Mappings),
		Duration: float64(time.Since(start).Microseconds()) / 1000,
	})

	return result, nil
}

// DeAnonymizeText replaces anonymized tokens in text with their original
// values, considering only the supplied mappings. No store lookups
// happen here: the operation is bounded to the exact mapping set from
// the matching anonymize call, so stale or unrelated mappings can never
// leak into the output. Tokens sort longest-first, the same
// collision-avoidance rule applied to tokens instead of raw values.
func (e *Engine) DeAnonymizeText(_ context.Context, text string, mappings []mapping.Mapping) (RestoreResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordOperationDuration("deanonymize_text", time.Since(start).Seconds())
	}()

	result := RestoreResult{Text: text, UsedIDs: []uuid.UUID{}}

	ordered := make([]mapping.Mapping, len(mappings))
	copy(ordered, mappings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].AnonymizedValue) > len(ordered[j].AnonymizedValue)
	})

	restored := 0
	for _, m := range ordered {
		if m.AnonymizedValue == "" {
			continue
		}
		re, err := literalPattern(m.AnonymizedValue)
		if err != nil {
			return RestoreResult{}, err
		}
		matches := len(re.FindAllStringIndex(result.Text, -1))
		if matches == 0 {
			// A mapping whose token never appears contributes nothing.
			continue
		}
		result.Text = re.ReplaceAllLiteralString(result.Text, m.OriginalValue)
		result.UsedIDs = append(result.UsedIDs, m.ID)
		restored += matches
	}

	metrics.TokensRestoredTotal.Add(float64(restored))
	e.audit.Log(&audit.Event{
		Type:     audit.EventTextDeanonymized,
		Count:    restored,
		Duration: float64(time.Since(start).Microseconds()) / 1000,
	})

	return result, nil
}
