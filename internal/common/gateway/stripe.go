// Package gateway reads customer and charge records from the payment gateway.
package gateway

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v83"

	"purchase-fulfillment/internal/common/errors"
)

// Customer is the gateway's customer record.
type Customer struct {
	ID      string
	Email   string
	Name    string
	Deleted bool
}

// Charge carries the billing details captured on a charge.
type Charge struct {
	ID           string
	BillingEmail string
	BillingName  string
	ReceiptEmail string
}

// StripeGateway looks records up through the Stripe API.
type StripeGateway struct {
	client *stripe.Client
}

func NewStripeGateway(secretKey string) *StripeGateway {
	return &StripeGateway{client: stripe.NewClient(secretKey)}
}

// GetCustomer retrieves a customer. Deleted customers are returned with Deleted set.
func (g *StripeGateway) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	cust, err := g.client.V1Customers.Retrieve(ctx, customerID, nil)
	if err != nil {
		return nil, errors.NewExternalServiceError("stripe", fmt.Errorf("retrieve customer %s: %w", customerID, err))
	}
	return customerFromStripe(cust), nil
}

// GetLatestCharge returns the most recent charge of a payment intent, or nil
// when the intent has none.
func (g *StripeGateway) GetLatestCharge(ctx context.Context, paymentIntentID string) (*Charge, error) {
	params := &stripe.PaymentIntentRetrieveParams{}
	params.AddExpand("latest_charge")

	pi, err := g.client.V1PaymentIntents.Retrieve(ctx, paymentIntentID, params)
	if err != nil {
		return nil, errors.NewExternalServiceError("stripe", fmt.Errorf("retrieve payment intent %s: %w", paymentIntentID, err))
	}
	return chargeFromIntent(pi), nil
}

func customerFromStripe(c *stripe.Customer) *Customer {
	if c == nil {
		return nil
	}
	return &Customer{
		ID:      c.ID,
		Email:   c.Email,
		Name:    c.Name,
		Deleted: c.Deleted,
	}
}

func chargeFromIntent(pi *stripe.PaymentIntent) *Charge {
	if pi == nil || pi.LatestCharge == nil {
		return nil
	}
	ch := pi.LatestCharge
	out := &Charge{ID: ch.ID, ReceiptEmail: ch.ReceiptEmail}
	if ch.BillingDetails != nil {
		out.BillingEmail = ch.BillingDetails.Email
		out.BillingName = ch.BillingDetails.Name
	}
	return out
}
