// Package coordinatepurchase drives one webhook delivery through the
// fulfillment state machine: verify, route, resolve identity, then record
// attribution, grant access and fan out to the best-effort integrations.
package coordinatepurchase

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"purchase-fulfillment/internal/common/dispatch"
	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/common/metrics"
	"purchase-fulfillment/internal/common/observability"
	"purchase-fulfillment/internal/models"
	grantaccess "purchase-fulfillment/internal/pipeline/access/grant-access"
	resolveidentity "purchase-fulfillment/internal/pipeline/identity/resolve-identity"
	routeevent "purchase-fulfillment/internal/pipeline/webhook/route-event"
	verifyevent "purchase-fulfillment/internal/pipeline/webhook/verify-event"
)

const StepName = "coordinate-purchase"

// Dependencies are the collaborators of a Coordinator. Tracker, Alerts and
// Submitter are optional.
type Dependencies struct {
	Verifier     Verifier
	Router       Router
	Resolver     IdentityResolver
	Granter      AccessGranter
	Tracker      AttributionTracker
	Integrations []Integration
	Alerts       AlertNotifier
	Submitter    Submitter
	Obs          *observability.Observability
	Logger       logger.Logger
}

type Coordinator struct {
	deps   Dependencies
	config *Config
	logger logger.Logger
}

func NewCoordinator(deps Dependencies, config *Config) (*Coordinator, error) {
	if deps.Verifier == nil || deps.Router == nil || deps.Resolver == nil || deps.Granter == nil {
		return nil, fmt.Errorf("verifier, router, resolver and granter are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid coordinator config: %w", err)
	}
	return &Coordinator{
		deps:   deps,
		config: config,
		logger: deps.Logger.WithFields(map[string]interface{}{"component": StepName}),
	}, nil
}

// Handle processes one raw delivery. It never returns an error; the outcome
// carries the HTTP disposition and everything that happened.
func (c *Coordinator) Handle(ctx context.Context, payload []byte, signatureHeader string) *Outcome {
	start := time.Now()
	out := &Outcome{State: StateVerifying, EventType: "unknown"}
	defer func() { c.record(ctx, out, time.Since(start)) }()

	event, err := c.deps.Verifier.Verify(payload, signatureHeader)
	if err != nil {
		out.Reason = err
		out.Disposition = errors.NewErrorHandler(c.logger).Handle(verifyevent.StepName, err)
		if errors.HasCode(err, errors.ErrCodeInvalidSignature) {
			out.State = StateRejected
		} else {
			out.State = StateIgnored
		}
		return out
	}

	out.DeliveryID = event.DeliveryID
	out.EventType = event.RawEventType
	out.ReferenceID = event.ExternalReferenceID
	log := logger.ForDelivery(c.logger, event.DeliveryID, event.RawEventType)
	errHandler := errors.NewErrorHandler(log)

	out.State = StateRouting
	route := c.deps.Router.Route(event)
	if !route.Process() {
		out.State = StateIgnored
		out.Reason = route.Reason
		out.Disposition = errHandler.Handle(routeevent.StepName, route.Reason)
		return out
	}
	for _, w := range route.Warnings {
		log.Warn("Dropped invalid metadata field", map[string]interface{}{"field": w})
	}

	// The gateway may hang up before fulfillment finishes; the work must not
	// be abandoned with it.
	ctx = context.WithoutCancel(ctx)

	identity, err := c.resolveIdentity(ctx, event, route.Metadata)
	if err != nil {
		out.State = StateIdentityFailed
		out.Reason = err
		out.Disposition = errHandler.Handle(resolveidentity.StepName, err)
		c.alertMissingIdentity(event, err, log)
		return out
	}

	out.State = StateProcessing
	purchase := &models.Purchase{
		Event:    event,
		Metadata: route.Metadata,
		Identity: *identity,
	}
	log.Info("Fulfilling purchase", map[string]interface{}{
		"referenceId": event.ExternalReferenceID,
		"email":       identity.Email,
		"amount":      event.AmountMinorUnits,
		"orderBump":   route.Metadata.IncludeOrderBump,
	})

	if c.deps.Tracker != nil {
		attribution := c.runIsolated(ctx, c.deps.Tracker.Name(), c.config.AttributionTimeout, func(ctx context.Context) error {
			return c.deps.Tracker.RecordPurchase(ctx, purchase)
		})
		out.Attribution = &attribution
		if !attribution.Succeeded {
			errHandler.Handle(attribution.Integration, attribution.Err)
		}
	}

	out.Grant, out.GrantErr = c.grant(ctx, purchase)
	purchase.Grant = out.Grant
	if out.Grant != nil {
		purchase.AccountID = out.Grant.AccountID
	}
	out.Disposition = errHandler.Handle(grantaccess.StepName, out.GrantErr)
	if out.GrantErr != nil && c.config.RetryOnGrantFailure {
		out.Disposition = errors.Disposition{Status: http.StatusInternalServerError, Acknowledge: false}
	}

	out.Integrations = c.fanOut(ctx, purchase)
	for _, r := range out.Integrations {
		if !r.Succeeded && !r.Skipped {
			errHandler.Handle(r.Integration, r.Err)
		}
	}

	out.State = StateCompleted
	log.Info("Purchase fulfillment finished", map[string]interface{}{
		"referenceId": event.ExternalReferenceID,
		"granted":     out.Grant.Granted(),
		"failed":      out.Failed(),
		"duration":    time.Since(start).String(),
	})
	return out
}

func (c *Coordinator) resolveIdentity(ctx context.Context, event *models.PurchaseEvent, meta models.PurchaseMetadata) (*models.ResolvedIdentity, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.IdentityTimeout)
	defer cancel()
	ctx, span := c.deps.Obs.StartSpan(ctx, resolveidentity.StepName)

	start := time.Now()
	identity, err := c.deps.Resolver.Resolve(ctx, event, meta)
	metrics.StepDuration.WithLabelValues(resolveidentity.StepName).Observe(time.Since(start).Seconds())
	observability.EndSpan(span, err)
	return identity, err
}

func (c *Coordinator) grant(ctx context.Context, p *models.Purchase) (*models.GrantResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.GrantTimeout)
	defer cancel()
	ctx, span := c.deps.Obs.StartSpan(ctx, grantaccess.StepName,
		attribute.String("reference_id", p.Event.ExternalReferenceID),
		attribute.Bool("order_bump", p.Metadata.IncludeOrderBump),
	)

	req := grantaccess.GrantRequest{
		Identity:            p.Identity,
		ExternalReferenceID: p.Event.ExternalReferenceID,
		PaymentReferenceID:  p.Event.PaymentReferenceID,
		Source:              p.Metadata.Source,
		IncludeOrderBump:    p.Metadata.IncludeOrderBump,
	}
	if p.Event.CustomerRef != nil {
		req.GatewayCustomerID = p.Event.CustomerRef.ID
	}

	start := time.Now()
	result, err := c.deps.Granter.Grant(ctx, req)
	metrics.StepDuration.WithLabelValues(grantaccess.StepName).Observe(time.Since(start).Seconds())
	observability.EndSpan(span, err)
	return result, err
}

// fanOut runs every integration against its own deadline. A failure or panic
// in one never reaches the others or the caller.
func (c *Coordinator) fanOut(ctx context.Context, p *models.Purchase) []models.IntegrationOutcome {
	outcomes := make([]models.IntegrationOutcome, len(c.deps.Integrations))

	if !c.config.ParallelFanOut {
		for i, in := range c.deps.Integrations {
			outcomes[i] = c.syncOne(ctx, in, p)
		}
		return outcomes
	}

	var g errgroup.Group
	for i, in := range c.deps.Integrations {
		g.Go(func() error {
			outcomes[i] = c.syncOne(ctx, in, p)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (c *Coordinator) syncOne(ctx context.Context, in Integration, p *models.Purchase) models.IntegrationOutcome {
	name := in.Name()
	return c.runIsolated(ctx, name, c.config.integrationTimeout(name), func(ctx context.Context) error {
		return in.Sync(ctx, p)
	})
}

func (c *Coordinator) runIsolated(ctx context.Context, name string, timeout time.Duration, fn func(context.Context) error) (outcome models.IntegrationOutcome) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ctx, span := c.deps.Obs.StartSpan(ctx, name)

	start := time.Now()
	outcome.Integration = name

	defer func() {
		if r := recover(); r != nil {
			outcome.Err = errors.NewIntegrationError(name, fmt.Errorf("panic: %v", r))
		}
		outcome.Duration = time.Since(start)
		outcome.Succeeded = outcome.Err == nil && !outcome.Skipped

		status := metrics.StatusSuccess
		switch {
		case outcome.Skipped:
			status = metrics.StatusSkipped
		case !outcome.Succeeded:
			status = metrics.StatusFailure
		}
		metrics.IntegrationCalls.WithLabelValues(name, status).Inc()
		metrics.StepDuration.WithLabelValues(name).Observe(outcome.Duration.Seconds())
		observability.EndSpan(span, outcome.Err)
	}()

	err := fn(ctx)
	if stderrors.Is(err, models.ErrNothingToSync) {
		outcome.Skipped = true
		return outcome
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded && !errors.HasCode(err, errors.ErrCodeTimeout) {
			err = errors.NewTimeoutError(name, err)
		}
		outcome.Err = err
	}
	return outcome
}

func (c *Coordinator) alertMissingIdentity(event *models.PurchaseEvent, cause error, log logger.Logger) {
	if c.deps.Alerts == nil || c.deps.Submitter == nil {
		return
	}
	reason := errors.Normalize(cause).Details
	accepted := c.deps.Submitter.Submit(dispatch.Task{
		Name: "missing-identity-alert:" + event.ExternalReferenceID,
		Run: func(ctx context.Context) error {
			return c.deps.Alerts.NotifyMissingIdentity(ctx, event, reason)
		},
	})
	if !accepted {
		log.Error("Missing identity alert dropped", map[string]interface{}{
			"referenceId": event.ExternalReferenceID,
		})
	}
}

func (c *Coordinator) record(ctx context.Context, out *Outcome, duration time.Duration) {
	if out.Disposition.Status == 0 {
		out.Disposition = errors.Disposition{Status: http.StatusOK, Acknowledge: true}
	}
	metrics.WebhookDeliveries.WithLabelValues(out.EventType, string(out.State)).Inc()
	metrics.StepDuration.WithLabelValues(StepName).Observe(duration.Seconds())
	c.deps.Obs.RecordDelivery(ctx, out.EventType, string(out.State), duration)
}
