package models

import (
	"errors"
	"time"
)

// Integration names used in logs, metrics and config step keys.
const (
	IntegrationCRM         = "crm-sync"
	IntegrationAds         = "ad-conversion"
	IntegrationOrders      = "order-sync"
	IntegrationAttribution = "funnel-attribution"
	IntegrationAutomation  = "automation-trigger"
)

// ErrNothingToSync is returned by an integration that had no work for the
// purchase. The call is recorded as skipped rather than failed.
var ErrNothingToSync = errors.New("nothing to sync")

// IntegrationOutcome records one fan-out call. It never alters the response.
type IntegrationOutcome struct {
	Integration string        `json:"integration"`
	Succeeded   bool          `json:"succeeded"`
	Skipped     bool          `json:"skipped,omitempty"`
	Err         error         `json:"-"`
	Duration    time.Duration `json:"duration"`
}

// AutomationSignalType names an automation engine entry point.
type AutomationSignalType string

const (
	SignalNewAccount AutomationSignalType = "account-created"
	SignalPurchase   AutomationSignalType = "product-purchased"
)

// AutomationSignal is emitted by the grant and delivered fire-and-forget.
type AutomationSignal struct {
	Type        AutomationSignalType `json:"type"`
	AccountID   string               `json:"accountId"`
	ProductID   string               `json:"productId,omitempty"`
	ProductName string               `json:"productName,omitempty"`
}

// DedupKey is stable across redeliveries of the same purchase.
func (s AutomationSignal) DedupKey() string {
	if s.Type == SignalPurchase {
		return string(s.Type) + ":" + s.AccountID + ":" + s.ProductID
	}
	return string(s.Type) + ":" + s.AccountID
}
