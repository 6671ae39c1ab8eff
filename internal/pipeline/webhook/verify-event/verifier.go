package verifyevent

import (
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/webhook"

	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/models"
)

const StepName = "verify-event"

var ErrMissingSignature = stderrors.New("missing Stripe-Signature header")

// Verifier authenticates webhook deliveries and decodes them into PurchaseEvents.
// It has no side effects.
type Verifier struct {
	config *Config
}

func NewVerifier(config *Config) (*Verifier, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid verifier config: %w", err)
	}
	return &Verifier{config: config}, nil
}

// Verify checks the signature over the exact raw body. A bad or missing
// signature is INVALID_SIGNATURE; a signed but undecodable object is
// INVALID_PAYLOAD. Event types other than the two purchase events decode
// to an Unrecognized event rather than an error.
func (v *Verifier) Verify(payload []byte, signatureHeader string) (*models.PurchaseEvent, error) {
	if signatureHeader == "" {
		return nil, errors.NewInvalidSignatureError(ErrMissingSignature)
	}

	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, v.config.WebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                v.config.Tolerance,
		IgnoreAPIVersionMismatch: v.config.IgnoreAPIVersionMismatch,
	})
	if err != nil {
		return nil, errors.NewInvalidSignatureError(err)
	}

	out := &models.PurchaseEvent{
		DeliveryID:   event.ID,
		RawEventType: string(event.Type),
	}

	if event.Data == nil {
		out.SourceEventType = models.Unrecognized
		return out, nil
	}

	switch models.SourceEventType(event.Type) {
	case models.CheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, errors.NewInvalidPayloadError("checkout session", err)
		}
		fromCheckoutSession(out, &session)

	case models.PaymentSucceeded:
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return nil, errors.NewInvalidPayloadError("payment intent", err)
		}
		fromPaymentIntent(out, &pi)

	default:
		out.SourceEventType = models.Unrecognized
	}

	return out, nil
}

func fromCheckoutSession(out *models.PurchaseEvent, s *stripe.CheckoutSession) {
	out.SourceEventType = models.CheckoutCompleted
	out.ExternalReferenceID = s.ID
	out.AmountMinorUnits = s.AmountTotal
	out.Currency = string(s.Currency)
	out.Metadata = copyMetadata(s.Metadata)

	if s.PaymentIntent != nil {
		out.PaymentReferenceID = s.PaymentIntent.ID
	}
	if s.Customer != nil && s.Customer.ID != "" {
		out.CustomerRef = &models.CustomerRef{ID: s.Customer.ID}
	}

	out.CheckoutEmail = s.CustomerEmail
	if s.CustomerDetails != nil {
		if s.CustomerDetails.Email != "" {
			out.CheckoutEmail = s.CustomerDetails.Email
		}
		out.CheckoutName = s.CustomerDetails.Name
	}
}

func fromPaymentIntent(out *models.PurchaseEvent, pi *stripe.PaymentIntent) {
	out.SourceEventType = models.PaymentSucceeded
	out.ExternalReferenceID = pi.ID
	out.PaymentReferenceID = pi.ID
	out.AmountMinorUnits = pi.Amount
	out.Currency = string(pi.Currency)
	out.Metadata = copyMetadata(pi.Metadata)

	if pi.Customer != nil && pi.Customer.ID != "" {
		out.CustomerRef = &models.CustomerRef{ID: pi.Customer.ID}
	}
}

func copyMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
