// Package observe provides application-wide observability primitives for
// yoassist: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all yoassist metrics.
const meterName = "github.com/MrWong99/yoassist"

// Provider kinds used as the "kind" attribute.
const (
	KindSTT = "stt"
	KindLLM = "llm"
	KindTTS = "tts"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use.
type Metrics struct {
	// --- Latency histograms per collaborator ---

	// CaptureDuration tracks how long each recorded window took end to end.
	CaptureDuration metric.Float64Histogram

	// STTDuration tracks speech-to-text transcription latency.
	STTDuration metric.Float64Histogram

	// LLMDuration tracks LLM inference latency.
	LLMDuration metric.Float64Histogram

	// TTSDuration tracks synthesis plus playback latency for a whole reply.
	TTSDuration metric.Float64Histogram

	// --- Conversation counters ---

	// Cycles counts state-machine steps. Attributes: state, status.
	Cycles metric.Int64Counter

	// StateTransitions counts state changes. Attributes: from, to.
	StateTransitions metric.Int64Counter

	// WakeDetections counts wake-word matches. Attribute: tier.
	WakeDetections metric.Int64Counter

	// Exchanges counts completed command/reply exchanges.
	Exchanges metric.Int64Counter

	// --- Provider counters ---

	// ProviderRequests counts provider API calls. Attributes: provider, kind, status.
	ProviderRequests metric.Int64Counter

	// ProviderErrors counts provider errors. Attributes: provider, kind.
	ProviderErrors metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Attributes:
	// provider, state.
	BreakerTransitions metric.Int64Counter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// capture windows and collaborator calls.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&met.CaptureDuration, "yoassist.capture.duration", "Wall-clock duration of a recorded capture window."},
		{&met.STTDuration, "yoassist.stt.duration", "Latency of speech-to-text transcription."},
		{&met.LLMDuration, "yoassist.llm.duration", "Latency of LLM inference."},
		{&met.TTSDuration, "yoassist.tts.duration", "Latency of speech synthesis and playback of one reply."},
	}
	for _, h := range histograms {
		if *h.dst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(latencyBuckets...),
		); err != nil {
			return nil, err
		}
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&met.Cycles, "yoassist.cycles", "Total conversation cycles by starting state and status."},
		{&met.StateTransitions, "yoassist.state.transitions", "Total conversation state transitions by from and to state."},
		{&met.WakeDetections, "yoassist.wake.detections", "Total wake-word detections by match tier."},
		{&met.Exchanges, "yoassist.exchanges", "Total completed command and reply exchanges."},
		{&met.ProviderRequests, "yoassist.provider.requests", "Total provider API requests by provider, kind, and status."},
		{&met.ProviderErrors, "yoassist.provider.errors", "Total provider errors by provider and kind."},
		{&met.BreakerTransitions, "yoassist.breaker.transitions", "Total circuit breaker state changes by provider and new state."},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, err
		}
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("yoassist.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Panics if instrument creation
// fails (should not happen with the global provider).
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCycle records one state-machine step that started in state.
// status is "ok" or "error".
func (m *Metrics) RecordCycle(ctx context.Context, state, status string) {
	m.Cycles.Add(ctx, 1, metric.WithAttributes(Attr("state", state), Attr("status", status)))
}

// RecordTransition records a state change.
func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	m.StateTransitions.Add(ctx, 1, metric.WithAttributes(Attr("from", from), Attr("to", to)))
}

// RecordWakeDetection records a wake-word match at the given tier.
func (m *Metrics) RecordWakeDetection(ctx context.Context, tier string) {
	m.WakeDetections.Add(ctx, 1, metric.WithAttributes(Attr("tier", tier)))
}

// RecordExchange records a completed exchange.
func (m *Metrics) RecordExchange(ctx context.Context) {
	m.Exchanges.Add(ctx, 1)
}

// RecordProviderRequest is a convenience method that records a provider
// request counter increment with the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError is a convenience method that records a provider error
// counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// ObserveProvider records latency and outcome of one collaborator call that
// began at start. Failures also increment the error counter.
func (m *Metrics) ObserveProvider(ctx context.Context, provider, kind string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	switch kind {
	case KindSTT:
		m.STTDuration.Record(ctx, elapsed)
	case KindLLM:
		m.LLMDuration.Record(ctx, elapsed)
	case KindTTS:
		m.TTSDuration.Record(ctx, elapsed)
	}
	status := "ok"
	if err != nil {
		status = "error"
		m.RecordProviderError(ctx, provider, kind)
	}
	m.RecordProviderRequest(ctx, provider, kind, status)
}

// RecordBreakerTransition counts a circuit breaker entering state.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, provider, state string) {
	m.BreakerTransitions.Add(ctx, 1, metric.WithAttributes(Attr("provider", provider), Attr("state", state)))
}
