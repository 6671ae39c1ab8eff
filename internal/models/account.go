package models

import "time"

// Account is a member account. Email is unique and stored lowercase.
type Account struct {
	ID                string    `json:"id"`
	Email             string    `json:"email"`
	FullName          string    `json:"fullName,omitempty"`
	GatewayCustomerID *string   `json:"gatewayCustomerId,omitempty"`
	IdentityID        string    `json:"identityId,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Product is a catalog entry resolved by slug.
type Product struct {
	ID              string `json:"id"`
	Slug            string `json:"slug"`
	Name            string `json:"name"`
	PriceMinorUnits int64  `json:"priceMinorUnits"`
}

const EntitlementActive = "active"

// ProductEntitlement grants an account access to a product. At most one
// exists per (AccountID, ProductID).
type ProductEntitlement struct {
	AccountID           string         `json:"accountId"`
	ProductID           string         `json:"productId"`
	Status              string         `json:"status"`
	ExternalReferenceID string         `json:"externalReferenceId"`
	PaymentReferenceID  string         `json:"paymentReferenceId,omitempty"`
	Source              PurchaseSource `json:"source"`
	GrantedAt           time.Time      `json:"grantedAt"`
}

// ProductGrant is the outcome for one product within a grant.
type ProductGrant struct {
	Slug      string `json:"slug"`
	ProductID string `json:"productId,omitempty"`
	Name      string `json:"name,omitempty"`
	// PriceMinorUnits is the catalog price at grant time.
	PriceMinorUnits int64 `json:"priceMinorUnits,omitempty"`
	Granted         bool  `json:"granted"`
	// Created is false when the entitlement already existed.
	Created bool   `json:"created"`
	Error   string `json:"error,omitempty"`
}

// GrantResult is returned by the access grant service.
type GrantResult struct {
	AccountID  string             `json:"accountId"`
	NewAccount bool               `json:"newAccount"`
	Primary    ProductGrant       `json:"primary"`
	Bump       *ProductGrant      `json:"bump,omitempty"`
	Signals    []AutomationSignal `json:"signals,omitempty"`
}

// Granted reports whether the primary product was granted.
func (g *GrantResult) Granted() bool {
	return g != nil && g.Primary.Granted
}
