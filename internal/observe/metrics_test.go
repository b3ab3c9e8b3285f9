package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
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

func findMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) *metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func TestUtteranceCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.Utterance(ctx, "dictate")
	m.Utterance(ctx, "dictate")
	m.Utterance(ctx, "send")

	got := findMetric(t, reader, "voxchat.utterances")
	if got == nil {
		t.Fatal("voxchat.utterances not recorded")
	}
	sum, ok := got.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("data = %T, want Sum[int64]", got.Data)
	}

	counts := map[string]int64{}
	for _, dp := range sum.DataPoints {
		v, _ := dp.Attributes.Value(attribute.Key("intent"))
		counts[v.AsString()] = dp.Value
	}
	if counts["dictate"] != 2 || counts["send"] != 1 {
		t.Errorf("counts = %v, want dictate=2 send=1", counts)
	}
}

func TestCompletionStarted(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	done := m.CompletionStarted(ctx)
	done("fallback")

	pending := findMetric(t, reader, "voxchat.completion.pending")
	if pending == nil {
		t.Fatal("pending gauge not recorded")
	}
	if sum := pending.Data.(metricdata.Sum[int64]); sum.DataPoints[0].Value != 0 {
		t.Errorf("pending = %d, want 0", sum.DataPoints[0].Value)
	}

	hist := findMetric(t, reader, "voxchat.completion.duration")
	if hist == nil {
		t.Fatal("duration not recorded")
	}
	h := hist.Data.(metricdata.Histogram[float64])
	if len(h.DataPoints) != 1 || h.DataPoints[0].Count != 1 {
		t.Errorf("histogram points = %+v, want one observation", h.DataPoints)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.Utterance(ctx, "wake")
	m.RecognitionEvent(ctx, "error")
	m.Restart(ctx)
	m.CompletionStarted(ctx)("ok")
}
