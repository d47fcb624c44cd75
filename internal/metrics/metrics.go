package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MappingsCreatedTotal counts newly minted mappings by field type
	MappingsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pii_anonymizer_mappings_created_total",
		Help: "Total number of new PII mappings created",
	}, []string{"field_type"})

	// MappingsRefreshedTotal counts upserts that extended an existing mapping
	MappingsRefreshedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pii_anonymizer_mappings_refreshed_total",
		Help: "Total number of existing PII mappings refreshed on re-use",
	}, []string{"field_type"})

	// FieldsAnonymizedTotal counts anonymized fields by field type
	FieldsAnonymizedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pii_anonymizer_fields_anonymized_total",
		Help: "Total number of PII fields anonymized",
	}, []string{"field_type"})

	// SubstitutionsTotal counts text substitutions applied during anonymization
	SubstitutionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pii_anonymizer_substitutions_total",
		Help: "Total number of PII occurrences substituted in free text",
	})

	// TokensRestoredTotal counts tokens replaced back to originals
	TokensRestoredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pii_anonymizer_tokens_restored_total",
		Help: "Total number of anonymized tokens restored to original values",
	})

	// LeakMatchesTotal counts leak validator hits by kind
	LeakMatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pii_anonymizer_leak_matches_total",
		Help: "Total number of PII-shaped patterns flagged by the leak validator",
	}, []string{"kind"})

	// MappingsPurgedTotal counts mappings removed by expiry sweeps
	MappingsPurgedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pii_anonymizer_mappings_purged_total",
		Help: "Total number of expired mappings removed by sweeps",
	})

	// LiveMappings tracks the live mapping population
	LiveMappings = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pii_anonymizer_live_mappings",
		Help: "Current number of live PII mappings in the store",
	})

	// CacheHitsTotal counts mapping cache hits by lookup direction
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pii_anonymizer_cache_hits_total",
		Help: "Total number of mapping cache hits",
	}, []string{"direction"}) // "value" or "token"

	// OperationDuration tracks anonymize/de-anonymize latency
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pii_anonymizer_operation_duration_seconds",
		Help:    "Anonymization operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// RecordLeakMatch records a leak validator hit
func RecordLeakMatch(kind string) {
	LeakMatchesTotal.WithLabelValues(kind).Inc()
}

// RecordOperationDuration records an operation's duration
func RecordOperationDuration(operation string, seconds float64) {
	OperationDuration.WithLabelValues(operation).Observe(seconds)
}
