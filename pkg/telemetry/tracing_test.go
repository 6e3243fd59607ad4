package telemetry

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInitTracerDisabled(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestGetSampler(t *testing.T) {
	assert.Equal(t, sdktrace.AlwaysSample().Description(), getSampler(Config{}).Description())
	assert.Equal(t, sdktrace.NeverSample().Description(), getSampler(Config{SamplerType: "never"}).Description())
	assert.Contains(t, getSampler(Config{SamplerType: "ratio", SamplerRatio: 0.5}).Description(), "TraceIDRatioBased{0.5}")
}

func TestWithSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	orig := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	defer otel.SetTracerProvider(orig)

	err := WithSpan(context.Background(), "workspace.ok", func(ctx context.Context) error {
		SetAttributes(ctx, attribute.Int("sweep.removed", 2))
		return nil
	}, attribute.String("session.id", "s1"))
	require.NoError(t, err)

	failure := errors.New("boom")
	err = WithSpan(context.Background(), "workspace.fail", func(context.Context) error {
		return failure
	})
	assert.Equal(t, failure, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "workspace.ok", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("session.id", "s1"))
	assert.Contains(t, spans[0].Attributes(), attribute.Int("sweep.removed", 2))

	assert.Equal(t, "workspace.fail", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
}
