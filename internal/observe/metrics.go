// Package observe provides observability primitives for the wake-word
// server: OpenTelemetry metrics and the Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped from the diagnostics /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all wakeserve metrics.
const meterName = "github.com/kestrelaudio/wakeserve"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// BuildDuration tracks detector construction latency (model load).
	BuildDuration metric.Float64Histogram

	// CacheHits counts detector acquisitions served from the idle set.
	// Use with attribute.String("keyword", ...).
	CacheHits metric.Int64Counter

	// CacheMisses counts acquisitions that required a fresh build.
	// Use with attribute.String("keyword", ...).
	CacheMisses metric.Int64Counter

	// Detections counts emitted detection events.
	// Use with attribute.String("keyword", ...).
	Detections metric.Int64Counter

	// FramesProcessed counts audio frames scored by detectors.
	FramesProcessed metric.Int64Counter

	// SessionErrors counts sessions terminated by an error.
	SessionErrors metric.Int64Counter

	// ActiveSessions tracks the number of live client sessions.
	ActiveSessions metric.Int64UpDownCounter
}

// buildBuckets defines histogram bucket boundaries (in seconds) sized for
// native model loading.
var buildBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.BuildDuration, err = m.Float64Histogram("wakeserve.detector.build.duration",
		metric.WithDescription("Latency of detector construction (model load)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(buildBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CacheHits, err = m.Int64Counter("wakeserve.cache.hits",
		metric.WithDescription("Detector acquisitions served from the idle set, by keyword."),
	); err != nil {
		return nil, err
	}
	if met.CacheMisses, err = m.Int64Counter("wakeserve.cache.misses",
		metric.WithDescription("Detector acquisitions requiring a fresh build, by keyword."),
	); err != nil {
		return nil, err
	}
	if met.Detections, err = m.Int64Counter("wakeserve.detections",
		metric.WithDescription("Detection events emitted, by keyword."),
	); err != nil {
		return nil, err
	}
	if met.FramesProcessed, err = m.Int64Counter("wakeserve.frames.processed",
		metric.WithDescription("Audio frames scored by detectors."),
	); err != nil {
		return nil, err
	}
	if met.SessionErrors, err = m.Int64Counter("wakeserve.session.errors",
		metric.WithDescription("Sessions terminated by an error."),
	); err != nil {
		return nil, err
	}
	if met.ActiveSessions, err = m.Int64UpDownCounter("wakeserve.active_sessions",
		metric.WithDescription("Number of live client sessions."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call using [otel.GetMeterProvider]. Subsequent calls return the
// same pointer. Panics if instrument creation fails (should not happen with
// the global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordCacheHit records an idle-set hit for keyword.
func (m *Metrics) RecordCacheHit(ctx context.Context, keyword string) {
	m.CacheHits.Add(ctx, 1,
		metric.WithAttributes(attribute.String("keyword", keyword)),
	)
}

// RecordCacheMiss records an idle-set miss for keyword.
func (m *Metrics) RecordCacheMiss(ctx context.Context, keyword string) {
	m.CacheMisses.Add(ctx, 1,
		metric.WithAttributes(attribute.String("keyword", keyword)),
	)
}

// RecordDetection records one emitted detection event for keyword.
func (m *Metrics) RecordDetection(ctx context.Context, keyword string) {
	m.Detections.Add(ctx, 1,
		metric.WithAttributes(attribute.String("keyword", keyword)),
	)
}
