package models

import (
	"math"
	"strings"
)

// SourceEventType is the kind of gateway event a purchase came from.
type SourceEventType string

const (
	CheckoutCompleted SourceEventType = "checkout.session.completed"
	PaymentSucceeded  SourceEventType = "payment_intent.succeeded"
	Unrecognized      SourceEventType = "unrecognized"
)

// CustomerRef is the gateway's opaque customer handle.
type CustomerRef struct {
	ID string `json:"id"`
}

// PurchaseEvent is the verified, decoded form of one webhook delivery.
// It is built once by the verifier and never mutated.
type PurchaseEvent struct {
	DeliveryID          string            `json:"deliveryId"`
	SourceEventType     SourceEventType   `json:"sourceEventType"`
	RawEventType        string            `json:"rawEventType"`
	ExternalReferenceID string            `json:"externalReferenceId"`
	PaymentReferenceID  string            `json:"paymentReferenceId,omitempty"`
	AmountMinorUnits    int64             `json:"amountMinorUnits"`
	Currency            string            `json:"currency"`
	CustomerRef         *CustomerRef      `json:"customerRef,omitempty"`
	CheckoutEmail       string            `json:"checkoutEmail,omitempty"`
	CheckoutName        string            `json:"checkoutName,omitempty"`
	Metadata            map[string]string `json:"metadata,omitempty"`
}

// PurchaseSource records where the purchase was initiated.
type PurchaseSource string

const (
	SourceFunnel PurchaseSource = "funnel"
	SourcePortal PurchaseSource = "portal"
)

// Metadata keys set by the checkout page.
const (
	MetaProduct          = "product"
	MetaCustomerEmail    = "customerEmail"
	MetaCustomerName     = "customerName"
	MetaIncludeOrderBump = "includeOrderBump"
	MetaFunnelSessionID  = "funnelSessionId"
	MetaSource           = "source"
	MetaClientIP         = "clientIp"
	MetaUserAgent        = "userAgent"
	MetaFBC              = "fbc"
	MetaFBP              = "fbp"
	MetaUTMSource        = "utmSource"
	MetaUTMCampaign      = "utmCampaign"
)

// PurchaseMetadata is the typed view of the event's metadata bag.
type PurchaseMetadata struct {
	Product          string         `json:"product,omitempty"`
	CustomerEmail    string         `json:"customerEmail,omitempty"`
	CustomerName     string         `json:"customerName,omitempty"`
	IncludeOrderBump bool           `json:"includeOrderBump"`
	FunnelSessionID  string         `json:"funnelSessionId,omitempty"`
	Source           PurchaseSource `json:"source"`
	ClientIP         string         `json:"clientIp,omitempty"`
	UserAgent        string         `json:"userAgent,omitempty"`
	FBC              string         `json:"fbc,omitempty"`
	FBP              string         `json:"fbp,omitempty"`
	UTMSource        string         `json:"utmSource,omitempty"`
	UTMCampaign      string         `json:"utmCampaign,omitempty"`
}

// ResolvedIdentity is the buyer identity for one purchase. Never persisted.
type ResolvedIdentity struct {
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Purchase is everything the fan-out adapters need about one fulfilled purchase.
type Purchase struct {
	Event    *PurchaseEvent
	Metadata PurchaseMetadata
	Identity ResolvedIdentity
	// AccountID is empty when the grant failed.
	AccountID string
	Grant     *GrantResult
}

// Currencies whose minor unit is not a hundredth of the major unit.
var currencyExponents = map[string]int{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "JPY": 0, "KMF": 0, "KRW": 0, "MGA": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "JOD": 3, "KWD": 3, "OMR": 3, "TND": 3,
}

// CurrencyExponent is the number of decimal places of currency. Unknown codes
// use 2.
func CurrencyExponent(currency string) int {
	if exp, ok := currencyExponents[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return exp
	}
	return 2
}

// MinorToMajor converts minor currency units to a decimal amount.
func MinorToMajor(minorUnits int64, currency string) float64 {
	return float64(minorUnits) / math.Pow10(CurrencyExponent(currency))
}
