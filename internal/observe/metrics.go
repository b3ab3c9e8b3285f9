// Package observe holds the OpenTelemetry instruments voxchat records and
// the Prometheus bridge that exposes them.
//
// A nil *Metrics is valid and records nothing, so components can take one
// optionally. Tests should build instruments with [NewMetrics] over a
// ManualReader-backed provider.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "voxchat"

type Metrics struct {
	// Utterances counts classified utterances. Attribute: intent.
	Utterances metric.Int64Counter

	// RecognitionEvents counts capture events that are not plain results.
	// Attribute: kind (error, end, empty).
	RecognitionEvents metric.Int64Counter

	// CaptureRestarts counts stop-then-start cycles of the listening loop.
	CaptureRestarts metric.Int64Counter

	// CompletionRequests counts completion calls. Attribute: status
	// (ok, fallback, error).
	CompletionRequests metric.Int64Counter

	// CompletionDuration tracks completion latency in seconds.
	CompletionDuration metric.Float64Histogram

	// Pending is 1 while a completion request is in flight.
	Pending metric.Int64UpDownCounter
}

var latencyBuckets = []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Utterances, err = m.Int64Counter("voxchat.utterances",
		metric.WithDescription("Recognized utterances by intent."),
	); err != nil {
		return nil, err
	}
	if met.RecognitionEvents, err = m.Int64Counter("voxchat.recognition.events",
		metric.WithDescription("Recognition errors and end-of-input events."),
	); err != nil {
		return nil, err
	}
	if met.CaptureRestarts, err = m.Int64Counter("voxchat.capture.restarts",
		metric.WithDescription("Times the listening loop re-armed capture."),
	); err != nil {
		return nil, err
	}
	if met.CompletionRequests, err = m.Int64Counter("voxchat.completion.requests",
		metric.WithDescription("Chat completion requests by outcome."),
	); err != nil {
		return nil, err
	}
	if met.CompletionDuration, err = m.Float64Histogram("voxchat.completion.duration",
		metric.WithDescription("Latency of chat completion requests."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Pending, err = m.Int64UpDownCounter("voxchat.completion.pending",
		metric.WithDescription("Completion requests in flight."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

func (m *Metrics) Utterance(ctx context.Context, intent string) {
	if m == nil {
		return
	}
	m.Utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("intent", intent)))
}

func (m *Metrics) RecognitionEvent(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.RecognitionEvents.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) Restart(ctx context.Context) {
	if m == nil {
		return
	}
	m.CaptureRestarts.Add(ctx, 1)
}

// CompletionStarted marks a request in flight and returns the func that
// records its outcome.
func (m *Metrics) CompletionStarted(ctx context.Context) func(status string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.Pending.Add(ctx, 1)
	return func(status string) {
		m.Pending.Add(ctx, -1)
		attrs := metric.WithAttributes(attribute.String("status", status))
		m.CompletionRequests.Add(ctx, 1, attrs)
		m.CompletionDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
