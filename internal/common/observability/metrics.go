package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/trace"

	"purchase-fulfillment/internal/common/logger"
)

// Observability bundles the OpenTelemetry meter and tracer of the service.
type Observability struct {
	meterProvider    *metric.MeterProvider
	meter            otelmetric.Meter
	tracer           trace.Tracer
	deliveryCounter  otelmetric.Int64Counter
	deliveryDuration otelmetric.Float64Histogram
}

// New wires an OTel meter provider to the Prometheus registry. A failed
// exporter leaves metrics disabled but tracing usable.
func New(serviceName string, log logger.Logger) *Observability {
	obs := &Observability{tracer: otel.Tracer(serviceName)}

	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("Failed to create Prometheus exporter", map[string]interface{}{"error": err.Error()})
		return obs
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	deliveryCounter, _ := meter.Int64Counter(
		"fulfillment.deliveries",
		otelmetric.WithDescription("Webhook deliveries processed"),
	)

	deliveryDuration, _ := meter.Float64Histogram(
		"fulfillment.duration",
		otelmetric.WithDescription("End-to-end fulfillment duration"),
		otelmetric.WithUnit("ms"),
	)

	obs.meterProvider = provider
	obs.meter = meter
	obs.deliveryCounter = deliveryCounter
	obs.deliveryDuration = deliveryDuration
	return obs
}

// NewNoop returns an Observability that records nothing.
func NewNoop() *Observability {
	return &Observability{tracer: otel.Tracer("noop")}
}

// StartSpan opens a span for one pipeline step.
func (o *Observability) StartSpan(ctx context.Context, step string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if o == nil || o.tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return o.tracer.Start(ctx, step, trace.WithAttributes(attrs...))
}

// EndSpan marks span failed when err is non-nil and closes it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (o *Observability) RecordDelivery(ctx context.Context, eventType, outcome string, duration time.Duration) {
	if o == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("outcome", outcome),
	)
	if o.deliveryCounter != nil {
		o.deliveryCounter.Add(ctx, 1, attrs)
	}
	if o.deliveryDuration != nil {
		o.deliveryDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
