package coordinatepurchase

import (
	"context"

	"purchase-fulfillment/internal/common/dispatch"
	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/models"
	grantaccess "purchase-fulfillment/internal/pipeline/access/grant-access"
	routeevent "purchase-fulfillment/internal/pipeline/webhook/route-event"
)

// State is where a delivery ended up in the fulfillment state machine.
type State string

const (
	StateVerifying      State = "verifying"
	StateRouting        State = "routing"
	StateProcessing     State = "processing"
	StateRejected       State = "rejected"
	StateIgnored        State = "ignored"
	StateIdentityFailed State = "identity_failed"
	StateCompleted      State = "completed"
)

type Verifier interface {
	Verify(payload []byte, signatureHeader string) (*models.PurchaseEvent, error)
}

type Router interface {
	Route(event *models.PurchaseEvent) *routeevent.Result
}

type IdentityResolver interface {
	Resolve(ctx context.Context, event *models.PurchaseEvent, meta models.PurchaseMetadata) (*models.ResolvedIdentity, error)
}

type AccessGranter interface {
	Grant(ctx context.Context, req grantaccess.GrantRequest) (*models.GrantResult, error)
}

// AttributionTracker runs first, before the grant.
type AttributionTracker interface {
	Name() string
	RecordPurchase(ctx context.Context, p *models.Purchase) error
}

// Integration is one best-effort fan-out target.
type Integration interface {
	Name() string
	Sync(ctx context.Context, p *models.Purchase) error
}

type AlertNotifier interface {
	NotifyMissingIdentity(ctx context.Context, event *models.PurchaseEvent, reason string) error
}

type Submitter interface {
	Submit(t dispatch.Task) bool
}

// Outcome is the full record of one delivery.
type Outcome struct {
	State       State
	DeliveryID  string
	EventType   string
	ReferenceID string
	// Reason explains a rejected, ignored or identity-failed delivery.
	Reason       error
	Attribution  *models.IntegrationOutcome
	Grant        *models.GrantResult
	GrantErr     error
	Integrations []models.IntegrationOutcome
	Disposition  errors.Disposition
}

// Failed lists the integrations that did not succeed.
func (o *Outcome) Failed() []string {
	var names []string
	if o.Attribution != nil && !o.Attribution.Succeeded {
		names = append(names, o.Attribution.Integration)
	}
	for _, r := range o.Integrations {
		if !r.Succeeded && !r.Skipped {
			names = append(names, r.Integration)
		}
	}
	return names
}
