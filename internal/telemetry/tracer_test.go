// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{ServiceName: "asentry"})
	require.NoError(t, err)
	assert.Nil(t, provider.tp)

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording(), "disabled telemetry must install a noop tracer")
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "asentry",
		ExporterType: "zipkin",
	})
	require.EqualError(t, err, "unsupported exporter type: zipkin (supported: grpc, http)")
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0.0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, newSampler(tt.rate).Description(), "rate %v", tt.rate)
	}
}

func TestNilProviderShutdown(t *testing.T) {
	var p *Provider
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestAttributesOnRecordedSpan(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("test").Start(context.Background(), "monitor.cycle")
	span.SetAttributes(CycleAttributes("c-1", 2, 1)...)
	span.SetAttributes(SentryAttributes(-3, 42)...)
	span.End()

	spans := rec.Ended()
	require.Len(t, spans, 1)
	got := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		got[kv.Key] = kv.Value
	}
	assert.Equal(t, "c-1", got[CycleIDKey].AsString())
	assert.Equal(t, int64(2), got[CycleNewKey].AsInt64())
	assert.Equal(t, int64(42), got[SentryObjectsKey].AsInt64())
	assert.InDelta(t, -3.0, got[SentryPSMinKey].AsFloat64(), 0)
}

func TestReleaseAttributesOmitsEmpty(t *testing.T) {
	attrs := ReleaseAttributes("octo/asentry", "", "asentry-v1.zip")
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key(ReleaseRepoKey), attrs[0].Key)
	assert.Equal(t, attribute.Key(ReleaseAssetKey), attrs[1].Key)
}
