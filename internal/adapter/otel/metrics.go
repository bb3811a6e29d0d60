package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "promptstruct"

// Metrics holds all PromptStruct metric instruments.
type Metrics struct {
	Mutations       metric.Int64Counter
	SavesFailed     metric.Int64Counter
	SaveDuration    metric.Float64Histogram
	CompileDuration metric.Float64Histogram
	CacheHits       metric.Int64Counter
	CacheMisses     metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Mutations, err = meter.Int64Counter("psm.tree.mutations",
		metric.WithDescription("Number of persisted tree mutations"))
	if err != nil {
		return nil, err
	}

	m.SavesFailed, err = meter.Int64Counter("psm.store.saves_failed",
		metric.WithDescription("Number of failed prompt saves"))
	if err != nil {
		return nil, err
	}

	m.SaveDuration, err = meter.Float64Histogram("psm.store.save_duration_seconds",
		metric.WithDescription("Prompt save duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.CompileDuration, err = meter.Float64Histogram("psm.compile.duration_seconds",
		metric.WithDescription("Prompt compile duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.CacheHits, err = meter.Int64Counter("psm.cache.hits",
		metric.WithDescription("Prompt document cache hits"))
	if err != nil {
		return nil, err
	}

	m.CacheMisses, err = meter.Int64Counter("psm.cache.misses",
		metric.WithDescription("Prompt document cache misses"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
