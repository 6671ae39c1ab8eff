// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Webhook deliveries by event type and terminal pipeline state",
		},
		[]string{"event_type", "outcome"},
	)

	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fulfillment_step_duration_seconds",
			Help:    "Duration of each fulfillment pipeline step in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"step"},
	)

	IntegrationCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "integration_calls_total",
			Help: "Fan-out integration calls by integration and status",
		},
		[]string{"integration", "status"},
	)

	EntitlementGrants = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_grants_total",
			Help: "Entitlement upserts by result (created, existing, product_missing, failed)",
		},
		[]string{"result"},
	)

	AutomationSignals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_signals_total",
			Help: "Automation signals by signal name and status",
		},
		[]string{"signal", "status"},
	)

	DispatcherQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatcher_queue_depth",
			Help: "Background tasks waiting for a dispatcher worker",
		},
	)
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusDropped = "dropped"
	StatusSkipped = "skipped"
)
