package observe

import (
	"context"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestStageDurations(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordRecognition(ctx, "whisper", 1200*time.Millisecond)
	m.RecordRecognition(ctx, "whisper", 300*time.Millisecond)
	m.RecordTranslation(ctx, "libretranslate", 80*time.Millisecond)
	m.EmitLatency.Record(ctx, 2.5)

	rm := collect(t, reader)
	tests := []struct {
		name  string
		count uint64
	}{
		{"livetranslate.recognition.duration", 2},
		{"livetranslate.translation.duration", 1},
		{"livetranslate.emit.latency", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			met := findMetric(rm, tt.name)
			if met == nil {
				t.Fatalf("metric %q not found", tt.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tt.name)
			}
			if len(hist.DataPoints) != 1 {
				t.Fatalf("got %d data points", len(hist.DataPoints))
			}
			if got := hist.DataPoints[0].Count; got != tt.count {
				t.Errorf("count = %d, want %d", got, tt.count)
			}
		})
	}
}

func TestRecordUtterance(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordUtterance(ctx, "ok")
	m.RecordUtterance(ctx, "ok")
	m.RecordUtterance(ctx, "recognition_error")

	met := findMetric(collect(t, reader), "livetranslate.utterances")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	got := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value("outcome")
		got[v.AsString()] = dp.Value
	}
	if got["ok"] != 2 || got["recognition_error"] != 1 {
		t.Errorf("outcomes = %v", got)
	}
}

func TestPendingGauge(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.PendingRecords.Add(ctx, 3)
	m.PendingRecords.Add(ctx, -2)

	met := findMetric(collect(t, reader), "livetranslate.emit.pending")
	if met == nil {
		t.Fatal("metric not found")
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatal("metric is not a sum")
	}
	if len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Errorf("pending = %+v, want 1", sum.DataPoints)
	}
}
