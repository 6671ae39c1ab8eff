package grantaccess

import (
	"context"
	"errors"

	"purchase-fulfillment/internal/models"
)

var ErrAccountNotFound = errors.New("ACCOUNT_NOT_FOUND")

// GrantRequest carries what the grant needs from one verified purchase.
type GrantRequest struct {
	Identity            models.ResolvedIdentity
	GatewayCustomerID   string
	ExternalReferenceID string
	PaymentReferenceID  string
	Source              models.PurchaseSource
	IncludeOrderBump    bool
}

// AccountStore is the durable account and entitlement store.
type AccountStore interface {
	// FindAccountByEmail returns ErrAccountNotFound when no account matches.
	FindAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	// CreateAccount returns an ACCOUNT_STORE_CONFLICT error when the email is taken.
	CreateAccount(ctx context.Context, account *models.Account) error
	// BackfillGatewayCustomerID sets the customer id only when it is unset.
	BackfillGatewayCustomerID(ctx context.Context, accountID, customerID string) (bool, error)
	// UpsertEntitlement reports whether a new row was inserted.
	UpsertEntitlement(ctx context.Context, e *models.ProductEntitlement) (bool, error)
}

// ProductCatalog resolves products by slug. A missing product is a
// PRODUCT_NOT_FOUND error.
type ProductCatalog interface {
	FindProductBySlug(ctx context.Context, slug string) (*models.Product, error)
}

// IdentityProvider provisions a login identity for a new account and returns
// its id.
type IdentityProvider interface {
	EnsureIdentity(ctx context.Context, email, fullName string) (string, error)
}
