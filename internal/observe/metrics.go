// Package observe provides the OpenTelemetry metric instruments recorded by
// the pipeline and the Prometheus bridge that exposes them on /metrics.
//
// Tests should build their own [Metrics] through [NewMetrics] with a
// ManualReader-backed provider; production code uses [DefaultMetrics].
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/obiente/translate/livetranslate"

// Metrics holds every instrument the pipeline records. The OTel types handle
// their own synchronisation.
type Metrics struct {
	// RecognitionDuration tracks recognizer latency per utterance.
	RecognitionDuration metric.Float64Histogram

	// TranslationDuration tracks translator latency per utterance.
	TranslationDuration metric.Float64Histogram

	// EmitLatency is the time from the end of an utterance's audio to the
	// moment its record reaches the sink.
	EmitLatency metric.Float64Histogram

	// Utterances counts emitted records. Use with attribute.String("outcome", ...).
	Utterances metric.Int64Counter

	// EvictedSamples counts canonical samples overwritten in the capture buffer.
	EvictedSamples metric.Int64Counter

	// DroppedFrames counts malformed input frames rejected by the resampler.
	DroppedFrames metric.Int64Counter

	// BackpressureStalls counts stall diagnostics raised by the emitter.
	BackpressureStalls metric.Int64Counter

	// PendingRecords is the number of records held by the emitter.
	PendingRecords metric.Int64UpDownCounter
}

// latencyBuckets are in seconds. Remote recognition of a 20 s utterance can
// take several seconds, so the tail is wider than a request/response service.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40,
}

// NewMetrics creates a Metrics using the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.RecognitionDuration, err = m.Float64Histogram("livetranslate.recognition.duration",
		metric.WithDescription("Latency of speech recognition per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranslationDuration, err = m.Float64Histogram("livetranslate.translation.duration",
		metric.WithDescription("Latency of translation per utterance."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmitLatency, err = m.Float64Histogram("livetranslate.emit.latency",
		metric.WithDescription("Delay between the end of an utterance and its emission."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.Utterances, err = m.Int64Counter("livetranslate.utterances",
		metric.WithDescription("Emitted records by outcome."),
	); err != nil {
		return nil, err
	}
	if met.EvictedSamples, err = m.Int64Counter("livetranslate.capture.evicted_samples",
		metric.WithDescription("Samples overwritten before the segmenter read them."),
	); err != nil {
		return nil, err
	}
	if met.DroppedFrames, err = m.Int64Counter("livetranslate.frames.dropped",
		metric.WithDescription("Malformed input frames dropped by the resampler."),
	); err != nil {
		return nil, err
	}
	if met.BackpressureStalls, err = m.Int64Counter("livetranslate.backpressure.stalls",
		metric.WithDescription("Times the emitter exceeded its pending bound."),
	); err != nil {
		return nil, err
	}

	if met.PendingRecords, err = m.Int64UpDownCounter("livetranslate.emit.pending",
		metric.WithDescription("Records held by the emitter waiting for an earlier sequence number."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics bound to the global
// meter provider. Call InitProvider first if the values should be exported.
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

// RecordUtterance counts one emitted record with its outcome kind.
func (m *Metrics) RecordUtterance(ctx context.Context, outcome string) {
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordRecognition records a recognizer call. backend names the
// implementation, e.g. "whisper" or "openai".
func (m *Metrics) RecordRecognition(ctx context.Context, backend string, d time.Duration) {
	m.RecognitionDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("backend", backend)))
}

// RecordTranslation records a translator call.
func (m *Metrics) RecordTranslation(ctx context.Context, backend string, d time.Duration) {
	m.TranslationDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("backend", backend)))
}
