package resolveidentity

import (
	"context"
	"fmt"
	"strings"

	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/common/gateway"
	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/models"
)

const StepName = "resolve-identity"

// Identity sources, in priority order.
const (
	SourceCheckoutDetails = "checkout_details"
	SourceMetadata        = "metadata"
	SourceCustomerRecord  = "customer_record"
	SourceLatestCharge    = "latest_charge"
	SourceReceiptEmail    = "receipt_email"
)

type PaymentGateway interface {
	GetCustomer(ctx context.Context, customerID string) (*gateway.Customer, error)
	GetLatestCharge(ctx context.Context, paymentIntentID string) (*gateway.Charge, error)
}

type Resolver struct {
	config  *Config
	gateway PaymentGateway
	logger  logger.Logger
}

func NewResolver(config *Config, gw PaymentGateway, log logger.Logger) (*Resolver, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid resolver config: %w", err)
	}
	return &Resolver{config: config, gateway: gw, logger: log}, nil
}

type candidate struct {
	source string
	email  string
	name   string
}

// Resolve walks the identity chain for the event and returns the first usable
// email. Placeholder addresses are skipped. Gateway lookups that fail are
// logged and skipped; they never fail resolution on their own.
func (r *Resolver) Resolve(ctx context.Context, event *models.PurchaseEvent, meta models.PurchaseMetadata) (*models.ResolvedIdentity, error) {
	var names []string
	var rejected []string

	consider := func(c candidate) (*models.ResolvedIdentity, bool) {
		if c.name = strings.TrimSpace(c.name); c.name != "" {
			names = append(names, c.name)
		}
		email := models.NormalizeEmail(c.email)
		if email == "" {
			return nil, false
		}
		// A placeholder counts as no email at all: the chain moves on to the
		// next source instead of failing on it.
		if !strings.Contains(email, "@") || r.config.isPlaceholder(email) {
			rejected = append(rejected, c.source)
			return nil, false
		}
		r.logger.Debug("Identity resolved", map[string]interface{}{
			"referenceId": event.ExternalReferenceID,
			"source":      c.source,
		})
		return &models.ResolvedIdentity{Email: email}, true
	}

	var found *models.ResolvedIdentity

	for _, next := range r.chain(event, meta) {
		c, ok := next(ctx)
		if !ok {
			continue
		}
		if id, ok := consider(c); ok {
			found = id
			break
		}
	}

	if found == nil {
		details := "no usable email in any source"
		if len(rejected) > 0 {
			details = "only placeholder or malformed email in: " + strings.Join(rejected, ", ")
		}
		return nil, errors.NewMissingIdentityError(event.ExternalReferenceID, details)
	}

	// A name from a higher-priority source wins; later sources only fill a gap.
	if len(names) > 0 {
		found.FullName = names[0]
	} else {
		found.FullName = lateName(event, meta)
	}
	return found, nil
}

type step func(ctx context.Context) (candidate, bool)

func (r *Resolver) chain(event *models.PurchaseEvent, meta models.PurchaseMetadata) []step {
	fromMetadata := func(context.Context) (candidate, bool) {
		return candidate{source: SourceMetadata, email: meta.CustomerEmail, name: meta.CustomerName}, true
	}

	if event.SourceEventType == models.CheckoutCompleted {
		return []step{
			func(context.Context) (candidate, bool) {
				return candidate{source: SourceCheckoutDetails, email: event.CheckoutEmail, name: event.CheckoutName}, true
			},
			fromMetadata,
		}
	}

	var charge *gateway.Charge
	chargeLoaded := false
	loadCharge := func(ctx context.Context) *gateway.Charge {
		if chargeLoaded {
			return charge
		}
		chargeLoaded = true
		charge = r.latestCharge(ctx, event)
		return charge
	}

	return []step{
		fromMetadata,
		func(ctx context.Context) (candidate, bool) {
			cust := r.customerRecord(ctx, event)
			if cust == nil {
				return candidate{}, false
			}
			return candidate{source: SourceCustomerRecord, email: cust.Email, name: cust.Name}, true
		},
		func(ctx context.Context) (candidate, bool) {
			ch := loadCharge(ctx)
			if ch == nil {
				return candidate{}, false
			}
			return candidate{source: SourceLatestCharge, email: ch.BillingEmail, name: ch.BillingName}, true
		},
		func(ctx context.Context) (candidate, bool) {
			ch := loadCharge(ctx)
			if ch == nil {
				return candidate{}, false
			}
			return candidate{source: SourceReceiptEmail, email: ch.ReceiptEmail}, true
		},
	}
}

func (r *Resolver) customerRecord(ctx context.Context, event *models.PurchaseEvent) *gateway.Customer {
	if event.CustomerRef == nil || event.CustomerRef.ID == "" || r.gateway == nil {
		return nil
	}
	cust, err := r.gateway.GetCustomer(ctx, event.CustomerRef.ID)
	if err != nil {
		r.logger.Warn("Customer lookup failed, continuing identity chain", map[string]interface{}{
			"referenceId": event.ExternalReferenceID,
			"customerId":  event.CustomerRef.ID,
			"error":       err,
		})
		return nil
	}
	if cust == nil || cust.Deleted {
		return nil
	}
	return cust
}

func (r *Resolver) latestCharge(ctx context.Context, event *models.PurchaseEvent) *gateway.Charge {
	if event.PaymentReferenceID == "" || r.gateway == nil {
		return nil
	}
	ch, err := r.gateway.GetLatestCharge(ctx, event.PaymentReferenceID)
	if err != nil {
		r.logger.Warn("Charge lookup failed, continuing identity chain", map[string]interface{}{
			"referenceId": event.ExternalReferenceID,
			"error":       err,
		})
		return nil
	}
	return ch
}

// lateName fills the name from sources the chain did not reach. Gateway calls
// are never made just for a name.
func lateName(event *models.PurchaseEvent, meta models.PurchaseMetadata) string {
	if n := strings.TrimSpace(meta.CustomerName); n != "" {
		return n
	}
	return strings.TrimSpace(event.CheckoutName)
}
