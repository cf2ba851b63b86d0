// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ManuGH/overlaycast/internal/config"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{Enabled: false, ExporterType: "grpc"})
	require.NoError(t, err)
	assert.False(t, provider.Enabled())

	_, span := otel.Tracer("test").Start(context.Background(), "noop-check")
	assert.False(t, span.IsRecording(), "noop tracer span must not record")
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_InvalidExporter(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "overlaycast-test",
		ExporterType: "zipkin",
	})
	require.Error(t, err)
	assert.Equal(t, "unsupported exporter type: zipkin (supported: grpc, http)", err.Error())
}

func TestNewProvider_HTTPExporter(t *testing.T) {
	provider, err := NewProvider(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "overlaycast-test",
		ExporterType: "http",
		Endpoint:     "127.0.0.1:1",
		SamplingRate: 0,
	})
	require.NoError(t, err)
	assert.True(t, provider.Enabled())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	// nothing was sampled, so shutdown has nothing to flush
	require.NoError(t, provider.Shutdown(ctx))
	otel.SetTracerProvider(sdktrace.NewTracerProvider())
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1.0, want: "AlwaysOnSampler"},
		{rate: 2.0, want: "AlwaysOnSampler"},
		{rate: 0.0, want: "AlwaysOffSampler"},
		{rate: -1, want: "AlwaysOffSampler"},
		{rate: 0.5, want: "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		assert.True(t, strings.HasPrefix(Sampler(tt.rate).Description(), "ParentBased{root:"+tt.want),
			"rate %v: %s", tt.rate, Sampler(tt.rate).Description())
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Version = "1.2.3"
	cfg.Telemetry.Enabled = true
	cfg.Telemetry.Exporter = "http"

	got := FromAppConfig(cfg)
	assert.Equal(t, Config{
		Enabled:        true,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: "1.2.3",
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   "http",
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	}, got)
}

func TestSessionSpanAttributes(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "player.session")
	span.SetAttributes(SessionAttributes("native-hls", 7, "retry")...)
	span.SetAttributes(SessionEndAttributes("error", "superseded")...)
	span.SetAttributes(PlaybackErrorAttributes("network", "loading timeout")...)
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	attrs := map[string]string{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, map[string]string{
		PlayerMediaKindKey:     "native-hls",
		PlayerGenerationKey:    "7",
		PlayerTriggerKey:       "retry",
		PlayerFinalStateKey:    "error",
		PlayerEndReasonKey:     "superseded",
		PlaybackErrorKindKey:   "network",
		PlaybackErrorDetailKey: "loading timeout",
	}, attrs)
}
