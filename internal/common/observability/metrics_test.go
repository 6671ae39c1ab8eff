package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// ==========================
// Spans
// ==========================

func TestStartSpan_WithoutTracerLeavesParentOpen(t *testing.T) {
	tests := []struct {
		name string
		obs  *Observability
	}{
		{name: "nil observability", obs: nil},
		{name: "no tracer", obs: &Observability{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
			defer func() { _ = provider.Shutdown(context.Background()) }()

			ctx, parent := provider.Tracer("test").Start(context.Background(), "delivery")

			stepCtx, span := tt.obs.StartSpan(ctx, "grant-access")
			EndSpan(span, errors.New("connection refused"))

			assert.False(t, span.SpanContext().IsValid())
			assert.Equal(t, ctx, stepCtx)
			assert.True(t, parent.IsRecording(), "parent span must stay open")
			assert.Empty(t, recorder.Ended())

			parent.End()
			require.Len(t, recorder.Ended(), 1)
			assert.Equal(t, "delivery", recorder.Ended()[0].Name())
		})
	}
}

func TestStartSpan_RecordsChildSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	obs := &Observability{tracer: provider.Tracer("test")}
	_, span := obs.StartSpan(context.Background(), "crm-sync")
	EndSpan(span, errors.New("503"))

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "crm-sync", ended[0].Name())
	assert.Equal(t, "503", ended[0].Status().Description)
}

func TestRecordDelivery_NilIsSafe(t *testing.T) {
	var obs *Observability
	assert.NotPanics(t, func() {
		obs.RecordDelivery(context.Background(), "checkout.session.completed", "completed", 0)
	})
}
