package grantaccess

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/common/metrics"
	"purchase-fulfillment/internal/models"
)

const StepName = "grant-access"

// Grant result labels.
const (
	resultCreated        = "created"
	resultExisting       = "existing"
	resultProductMissing = "product_missing"
	resultFailed         = "failed"
)

type ServiceDependencies struct {
	Store      AccountStore
	Catalog    ProductCatalog
	Identities IdentityProvider // optional
	Logger     logger.Logger
}

type Service struct {
	config     *Config
	store      AccountStore
	catalog    ProductCatalog
	identities IdentityProvider
	logger     logger.Logger
	now        func() time.Time
}

func NewService(deps ServiceDependencies, config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid grant config: %w", err)
	}
	if deps.Store == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("grant service requires a store and a catalog")
	}
	return &Service{
		config:     config,
		store:      deps.Store,
		catalog:    deps.Catalog,
		identities: deps.Identities,
		logger:     deps.Logger.WithFields(map[string]interface{}{"step": StepName}),
		now:        time.Now,
	}, nil
}

// Grant finds or creates the buyer's account and upserts one entitlement for
// the primary product, plus one for the bump product when requested.
//
// A missing product is reported in the result, not as an error. When an
// entitlement write fails the partial result is returned together with a
// GRANT_FAILED error; the other product's grant is unaffected.
func (s *Service) Grant(ctx context.Context, req GrantRequest) (*models.GrantResult, error) {
	email := models.NormalizeEmail(req.Identity.Email)
	if email == "" {
		return nil, errors.NewGrantFailedError("resolve account", fmt.Errorf("empty email"))
	}

	acct, created, err := s.resolveAccount(ctx, email, req)
	if err != nil {
		metrics.EntitlementGrants.WithLabelValues(resultFailed).Inc()
		return nil, errors.NewGrantFailedError("resolve account", err)
	}

	result := &models.GrantResult{
		AccountID:  acct.ID,
		NewAccount: created,
	}
	if created {
		result.Signals = append(result.Signals, models.AutomationSignal{
			Type:      models.SignalNewAccount,
			AccountID: acct.ID,
		})
	}

	var grantErrs []error

	primary, err := s.grantProduct(ctx, acct.ID, s.config.PrimaryProductSlug, req)
	result.Primary = primary
	if err != nil {
		grantErrs = append(grantErrs, err)
	}

	if req.IncludeOrderBump {
		bump, err := s.grantProduct(ctx, acct.ID, s.config.BumpProductSlug, req)
		result.Bump = &bump
		if err != nil {
			grantErrs = append(grantErrs, err)
		}
	}

	for _, g := range []*models.ProductGrant{&result.Primary, result.Bump} {
		if g == nil || !g.Granted {
			continue
		}
		result.Signals = append(result.Signals, models.AutomationSignal{
			Type:        models.SignalPurchase,
			AccountID:   acct.ID,
			ProductID:   g.ProductID,
			ProductName: g.Name,
		})
	}

	s.logger.Info("Access grant finished", map[string]interface{}{
		"referenceId": req.ExternalReferenceID,
		"accountId":   acct.ID,
		"newAccount":  created,
		"primary":     result.Primary.Granted,
		"bump":        result.Bump != nil && result.Bump.Granted,
	})

	if len(grantErrs) > 0 {
		return result, errors.NewGrantFailedError("upsert entitlement", stderrors.Join(grantErrs...))
	}
	return result, nil
}

// resolveAccount looks the account up by email and creates it when absent.
// A create that loses a race to a concurrent delivery re-reads the winner.
func (s *Service) resolveAccount(ctx context.Context, email string, req GrantRequest) (*models.Account, bool, error) {
	acct, err := s.store.FindAccountByEmail(ctx, email)
	switch {
	case err == nil:
		s.backfillCustomer(ctx, acct, req.GatewayCustomerID)
		return acct, false, nil
	case !stderrors.Is(err, ErrAccountNotFound):
		return nil, false, err
	}

	acct = &models.Account{
		ID:        uuid.New().String(),
		Email:     email,
		FullName:  req.Identity.FullName,
		CreatedAt: s.now().UTC(),
	}
	if req.GatewayCustomerID != "" {
		customerID := req.GatewayCustomerID
		acct.GatewayCustomerID = &customerID
	}

	if s.identities != nil {
		identityID, err := s.identities.EnsureIdentity(ctx, email, req.Identity.FullName)
		if err != nil {
			return nil, false, fmt.Errorf("provision identity: %w", err)
		}
		acct.IdentityID = identityID
	}

	err = s.store.CreateAccount(ctx, acct)
	if err == nil {
		s.logger.Info("Account created", map[string]interface{}{
			"accountId":   acct.ID,
			"referenceId": req.ExternalReferenceID,
		})
		return acct, true, nil
	}
	if !errors.HasCode(err, errors.ErrCodeAccountStoreConflict) {
		return nil, false, err
	}

	s.logger.Info("Account created concurrently, reusing existing", map[string]interface{}{
		"referenceId": req.ExternalReferenceID,
	})
	existing, err := s.store.FindAccountByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("re-read after create conflict: %w", err)
	}
	s.backfillCustomer(ctx, existing, req.GatewayCustomerID)
	return existing, false, nil
}

func (s *Service) backfillCustomer(ctx context.Context, acct *models.Account, customerID string) {
	if customerID == "" || acct.GatewayCustomerID != nil {
		return
	}
	updated, err := s.store.BackfillGatewayCustomerID(ctx, acct.ID, customerID)
	if err != nil {
		s.logger.Warn("Gateway customer backfill failed", map[string]interface{}{
			"accountId": acct.ID,
			"error":     err,
		})
		return
	}
	if updated {
		acct.GatewayCustomerID = &customerID
	}
}

func (s *Service) grantProduct(ctx context.Context, accountID, slug string, req GrantRequest) (models.ProductGrant, error) {
	grant := models.ProductGrant{Slug: slug}

	product, err := s.catalog.FindProductBySlug(ctx, slug)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeProductNotFound) {
			metrics.EntitlementGrants.WithLabelValues(resultProductMissing).Inc()
			s.logger.Warn("Product not in catalog, access not granted", map[string]interface{}{
				"slug":        slug,
				"referenceId": req.ExternalReferenceID,
			})
			grant.Error = err.Error()
			return grant, nil
		}
		metrics.EntitlementGrants.WithLabelValues(resultFailed).Inc()
		grant.Error = err.Error()
		return grant, fmt.Errorf("product %s: %w", slug, err)
	}

	grant.ProductID = product.ID
	grant.Name = product.Name
	grant.PriceMinorUnits = product.PriceMinorUnits

	created, err := s.store.UpsertEntitlement(ctx, &models.ProductEntitlement{
		AccountID:           accountID,
		ProductID:           product.ID,
		Status:              models.EntitlementActive,
		ExternalReferenceID: req.ExternalReferenceID,
		PaymentReferenceID:  req.PaymentReferenceID,
		Source:              req.Source,
		GrantedAt:           s.now().UTC(),
	})
	if err != nil {
		metrics.EntitlementGrants.WithLabelValues(resultFailed).Inc()
		grant.Error = err.Error()
		return grant, fmt.Errorf("entitlement %s: %w", slug, err)
	}

	grant.Granted = true
	grant.Created = created
	if created {
		metrics.EntitlementGrants.WithLabelValues(resultCreated).Inc()
	} else {
		metrics.EntitlementGrants.WithLabelValues(resultExisting).Inc()
	}
	return grant, nil
}
