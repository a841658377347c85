// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics, tracing, and HTTP middleware tying them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API and exposed for
// Prometheus scraping through the bridge installed by [InitProvider]. A
// package-level default [Metrics] instance ([DefaultMetrics]) is provided
// for convenience; tests should use [NewMetrics] with their own
// [metric.MeterProvider] to avoid cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for all service metrics.
const meterName = "github.com/shlokhq/versecoach"

// Metrics holds the service's OTel metric instruments. All fields are safe
// for concurrent use.
type Metrics struct {
	// TranscriptionDuration tracks one speech-to-text round-trip, from
	// artifact write to transcript.
	TranscriptionDuration metric.Float64Histogram

	// AttemptDuration tracks a whole verification attempt as seen by the
	// HTTP handler, including capture where applicable.
	AttemptDuration metric.Float64Histogram

	// SynthesisDuration tracks text-to-speech synthesis latency.
	SynthesisDuration metric.Float64Histogram

	// Attempts counts verification attempts. Use with attribute:
	//   attribute.String("outcome", ...)
	Attempts metric.Int64Counter

	// CaptureRetries counts no-speech capture retries.
	CaptureRetries metric.Int64Counter

	// AnnounceDrops counts announcements dropped due to a full queue.
	AnnounceDrops metric.Int64Counter

	// AnnounceErrors counts absorbed synthesis/playback failures.
	AnnounceErrors metric.Int64Counter

	// ActiveSessions tracks live practice sessions.
	ActiveSessions metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// speech-pipeline latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct on the given
// [metric.MeterProvider].
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TranscriptionDuration, err = m.Float64Histogram("versecoach.transcription.duration",
		metric.WithDescription("Latency of one speech-to-text round-trip."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.AttemptDuration, err = m.Float64Histogram("versecoach.attempt.duration",
		metric.WithDescription("End-to-end latency of a verification attempt."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SynthesisDuration, err = m.Float64Histogram("versecoach.synthesis.duration",
		metric.WithDescription("Latency of text-to-speech synthesis."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Attempts, err = m.Int64Counter("versecoach.attempts",
		metric.WithDescription("Total verification attempts by outcome."),
	); err != nil {
		return nil, err
	}
	if met.CaptureRetries, err = m.Int64Counter("versecoach.capture.retries",
		metric.WithDescription("Total no-speech capture retries."),
	); err != nil {
		return nil, err
	}
	if met.AnnounceDrops, err = m.Int64Counter("versecoach.announce.drops",
		metric.WithDescription("Announcements dropped due to a full queue."),
	); err != nil {
		return nil, err
	}
	if met.AnnounceErrors, err = m.Int64Counter("versecoach.announce.errors",
		metric.WithDescription("Absorbed announcement synthesis and playback failures."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("versecoach.active_sessions",
		metric.WithDescription("Number of live practice sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("versecoach.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it
// on first call from [otel.GetMeterProvider]. Panics if instrument creation
// fails, which should not happen with the global provider.
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

// RecordAttempt records one verification attempt with its outcome.
func (m *Metrics) RecordAttempt(ctx context.Context, outcome string) {
	m.Attempts.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}
