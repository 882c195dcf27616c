package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/vivekverma239/superfast-ai/config"
)

// restoreGlobals 测试结束后恢复全局 provider
func restoreGlobals(t *testing.T) {
	t.Helper()
	origTP := otel.GetTracerProvider()
	origMP := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(origTP)
		otel.SetMeterProvider(origMP)
	})
}

func TestInit_Disabled(t *testing.T) {
	restoreGlobals(t)

	p, err := Init(config.TelemetryConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Nil(t, p.tp)
	assert.Nil(t, p.mp)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestInit_NilLogger(t *testing.T) {
	p, err := Init(config.DefaultTelemetryConfig(), nil)
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestInit_Enabled(t *testing.T) {
	restoreGlobals(t)

	cfg := config.TelemetryConfig{
		Enabled:      true,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "superfast-test",
		SampleRate:   0.5,
	}
	p, err := Init(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = p.Shutdown(ctx)
	})

	assert.NotNil(t, p.tp)
	assert.NotNil(t, p.mp)
	_, tpIsSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	_, mpIsSDK := otel.GetMeterProvider().(*sdkmetric.MeterProvider)
	assert.True(t, tpIsSDK)
	assert.True(t, mpIsSDK)
}

func TestProviders_ShutdownNil(t *testing.T) {
	var p *Providers
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := tp.Tracer("test")

	_, ok := StartSpan(context.Background(), tracer, "agent.run", attribute.String("agent.model", "m"))
	EndSpan(ok, nil)
	_, failed := StartSpan(context.Background(), tracer, "agent.stream")
	EndSpan(failed, errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "agent.run", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("agent.model", "m"))

	assert.Equal(t, "agent.stream", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
	require.Len(t, spans[1].Events(), 1)
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}

func TestStartSpan_DefaultTracer(t *testing.T) {
	ctx, span := StartSpan(context.Background(), nil, "noop")
	defer span.End()
	assert.NotNil(t, ctx)
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "dev", Version())
}
