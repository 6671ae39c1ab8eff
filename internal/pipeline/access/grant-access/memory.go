package grantaccess

import (
	"context"
	"sync"

	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/models"
)

// MemoryStore is an in-process AccountStore and ProductCatalog for local runs
// without Postgres. It enforces the same uniqueness rules as the schema.
type MemoryStore struct {
	mu           sync.Mutex
	accounts     map[string]*models.Account // by email
	entitlements map[string]*models.ProductEntitlement
	products     map[string]*models.Product
}

func NewMemoryStore(products ...*models.Product) *MemoryStore {
	s := &MemoryStore{
		accounts:     make(map[string]*models.Account),
		entitlements: make(map[string]*models.ProductEntitlement),
		products:     make(map[string]*models.Product),
	}
	for _, p := range products {
		s.products[p.Slug] = p
	}
	return s
}

func (s *MemoryStore) FindAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[models.NormalizeEmail(email)]
	if !ok {
		return nil, ErrAccountNotFound
	}
	copied := *acct
	return &copied, nil
}

func (s *MemoryStore) CreateAccount(_ context.Context, acct *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[acct.Email]; exists {
		return errors.NewAccountStoreConflictError(acct.Email, nil)
	}
	copied := *acct
	s.accounts[acct.Email] = &copied
	return nil
}

func (s *MemoryStore) BackfillGatewayCustomerID(_ context.Context, accountID, customerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if a.ID == accountID && a.GatewayCustomerID == nil {
			a.GatewayCustomerID = &customerID
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) UpsertEntitlement(_ context.Context, e *models.ProductEntitlement) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := e.AccountID + "/" + e.ProductID
	if _, exists := s.entitlements[key]; exists {
		return false, nil
	}
	copied := *e
	s.entitlements[key] = &copied
	return true, nil
}

func (s *MemoryStore) FindProductBySlug(_ context.Context, slug string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[slug]
	if !ok {
		return nil, errors.NewProductNotFoundError(slug)
	}
	return p, nil
}

// UpsertProduct adds or replaces a catalog entry and returns its id.
func (s *MemoryStore) UpsertProduct(_ context.Context, p *models.Product) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.products[p.Slug]; ok {
		p.ID = existing.ID
	}
	copied := *p
	s.products[p.Slug] = &copied
	return p.ID, nil
}

// Counts returns the number of accounts and entitlements held.
func (s *MemoryStore) Counts() (accounts, entitlements int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts), len(s.entitlements)
}

// Entitlements returns a snapshot of the entitlements held for an account.
func (s *MemoryStore) Entitlements(accountID string) []models.ProductEntitlement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ProductEntitlement
	for _, e := range s.entitlements {
		if e.AccountID == accountID {
			out = append(out, *e)
		}
	}
	return out
}
