package observe

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
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

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
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

// sumWhere returns the value of the first data point of the named counter
// whose attributes contain key=value. ok is false when no point matches.
func sumWhere(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) (int64, bool) {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if v, found := dp.Attributes.Value(attribute.Key(key)); found && v.AsString() == value {
			return dp.Value, true
		}
	}
	return 0, false
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"yoassist.capture.duration", m.CaptureDuration},
		{"yoassist.stt.duration", m.STTDuration},
		{"yoassist.llm.duration", m.LLMDuration},
		{"yoassist.tts.duration", m.TTSDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestConversationCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCycle(ctx, "awaiting_wake_word", "ok")
	m.RecordCycle(ctx, "awaiting_wake_word", "ok")
	m.RecordCycle(ctx, "listening", "error")
	m.RecordTransition(ctx, "awaiting_wake_word", "listening")
	m.RecordWakeDetection(ctx, "fuzzy")
	m.RecordWakeDetection(ctx, "fuzzy")
	m.RecordWakeDetection(ctx, "exact")
	m.RecordExchange(ctx)
	m.RecordBreakerTransition(ctx, "ollama", "open")

	rm := collect(t, reader)

	tests := []struct {
		metric, key, value string
		want               int64
	}{
		{"yoassist.cycles", "status", "ok", 2},
		{"yoassist.cycles", "status", "error", 1},
		{"yoassist.state.transitions", "to", "listening", 1},
		{"yoassist.wake.detections", "tier", "fuzzy", 2},
		{"yoassist.wake.detections", "tier", "exact", 1},
		{"yoassist.breaker.transitions", "state", "open", 1},
	}
	for _, tc := range tests {
		got, ok := sumWhere(t, rm, tc.metric, tc.key, tc.value)
		if !ok {
			t.Errorf("%s{%s=%s}: data point not found", tc.metric, tc.key, tc.value)
			continue
		}
		if got != tc.want {
			t.Errorf("%s{%s=%s} = %d, want %d", tc.metric, tc.key, tc.value, got, tc.want)
		}
	}

	met := findMetric(rm, "yoassist.exchanges")
	if met == nil {
		t.Fatal("yoassist.exchanges not found")
	}
	if sum := met.Data.(metricdata.Sum[int64]); len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 1 {
		t.Errorf("exchanges = %+v, want one point of 1", sum.DataPoints)
	}
}

func TestObserveProvider(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	start := time.Now().Add(-50 * time.Millisecond)

	m.ObserveProvider(ctx, "whisper", KindSTT, start, nil)
	m.ObserveProvider(ctx, "ollama", KindLLM, start, errors.New("boom"))

	rm := collect(t, reader)

	if got, ok := sumWhere(t, rm, "yoassist.provider.requests", "status", "ok"); !ok || got != 1 {
		t.Errorf("requests{status=ok} = %d (found=%v), want 1", got, ok)
	}
	if got, ok := sumWhere(t, rm, "yoassist.provider.requests", "status", "error"); !ok || got != 1 {
		t.Errorf("requests{status=error} = %d (found=%v), want 1", got, ok)
	}
	if got, ok := sumWhere(t, rm, "yoassist.provider.errors", "provider", "ollama"); !ok || got != 1 {
		t.Errorf("errors{provider=ollama} = %d (found=%v), want 1", got, ok)
	}

	for _, name := range []string{"yoassist.stt.duration", "yoassist.llm.duration"} {
		met := findMetric(rm, name)
		if met == nil {
			t.Fatalf("%s not found", name)
		}
		hist := met.Data.(metricdata.Histogram[float64])
		if len(hist.DataPoints) != 1 || hist.DataPoints[0].Count != 1 {
			t.Errorf("%s: want exactly one observation", name)
		}
		if hist.DataPoints[0].Sum < 0.05 {
			t.Errorf("%s: sum = %f, want >= 0.05", name, hist.DataPoints[0].Sum)
		}
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/healthz"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "yoassist.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
