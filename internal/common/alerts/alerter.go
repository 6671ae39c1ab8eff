// Package alerts emails operators about purchases that need manual remediation.
package alerts

import (
	"context"
	"fmt"
	"strings"

	"purchase-fulfillment/internal/models"
)

type EmailSender interface {
	SendText(ctx context.Context, from string, to []string, subject, body string) (string, error)
}

type Alerter struct {
	sender EmailSender
	from   string
	to     []string
}

func NewAlerter(sender EmailSender, from string, to []string) *Alerter {
	return &Alerter{sender: sender, from: from, to: to}
}

// NotifyMissingIdentity reports a paid purchase that could not be attributed
// to any customer email.
func (a *Alerter) NotifyMissingIdentity(ctx context.Context, event *models.PurchaseEvent, reason string) error {
	subject := fmt.Sprintf("[fulfillment] purchase %s has no customer email", event.ExternalReferenceID)

	var b strings.Builder
	fmt.Fprintf(&b, "A paid purchase was acknowledged but not fulfilled.\n\n")
	fmt.Fprintf(&b, "Delivery:   %s\n", event.DeliveryID)
	fmt.Fprintf(&b, "Event type: %s\n", event.RawEventType)
	fmt.Fprintf(&b, "Reference:  %s\n", event.ExternalReferenceID)
	if event.PaymentReferenceID != "" {
		fmt.Fprintf(&b, "Payment:    %s\n", event.PaymentReferenceID)
	}
	if event.CustomerRef != nil {
		fmt.Fprintf(&b, "Customer:   %s\n", event.CustomerRef.ID)
	}
	fmt.Fprintf(&b, "Amount:     %d %s\n", event.AmountMinorUnits, strings.ToUpper(event.Currency))
	fmt.Fprintf(&b, "Reason:     %s\n", reason)

	if _, err := a.sender.SendText(ctx, a.from, a.to, subject, b.String()); err != nil {
		return fmt.Errorf("failed to send missing identity alert: %w", err)
	}
	return nil
}
