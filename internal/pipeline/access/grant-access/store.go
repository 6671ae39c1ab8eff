package grantaccess

import (
	"context"
	"database/sql"
	_ "embed"
	stderrors "errors"
	"fmt"

	"purchase-fulfillment/internal/common/database"
	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// PostgresStore implements AccountStore and ProductCatalog. Every write is an
// upsert on a natural key, so concurrent duplicate deliveries converge.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return errors.NewQueryExecutionFailedError("ensure schema", err)
	}
	return nil
}

func (s *PostgresStore) FindAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var (
		acct       models.Account
		customerID sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, gateway_customer_id, identity_id, created_at
		FROM accounts
		WHERE email = $1`, models.NormalizeEmail(email)).
		Scan(&acct.ID, &acct.Email, &acct.FullName, &customerID, &acct.IdentityID, &acct.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("find account by email", err)
	}
	if customerID.Valid {
		acct.GatewayCustomerID = &customerID.String
	}
	return &acct, nil
}

func (s *PostgresStore) CreateAccount(ctx context.Context, acct *models.Account) error {
	var customerID sql.NullString
	if acct.GatewayCustomerID != nil && *acct.GatewayCustomerID != "" {
		customerID = sql.NullString{String: *acct.GatewayCustomerID, Valid: true}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, email, full_name, gateway_customer_id, identity_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (email) DO NOTHING`,
		acct.ID, models.NormalizeEmail(acct.Email), acct.FullName, customerID, acct.IdentityID, acct.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return errors.NewAccountStoreConflictError(acct.Email, err)
		}
		return errors.NewQueryExecutionFailedError("create account", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewQueryExecutionFailedError("create account", err)
	}
	if n == 0 {
		return errors.NewAccountStoreConflictError(acct.Email, nil)
	}
	return nil
}

func (s *PostgresStore) BackfillGatewayCustomerID(ctx context.Context, accountID, customerID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE accounts
		SET gateway_customer_id = $2
		WHERE id = $1 AND gateway_customer_id IS NULL`,
		accountID, customerID,
	)
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("backfill gateway customer id", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("backfill gateway customer id", err)
	}
	return n > 0, nil
}

// UpsertEntitlement inserts the entitlement or reactivates an inactive one.
// An already active row is left untouched and reported as not created.
func (s *PostgresStore) UpsertEntitlement(ctx context.Context, e *models.ProductEntitlement) (bool, error) {
	var inserted bool
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO product_entitlements
			(account_id, product_id, status, external_reference_id, payment_reference_id, source, granted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (account_id, product_id) DO UPDATE
			SET status = EXCLUDED.status, updated_at = now()
			WHERE product_entitlements.status <> EXCLUDED.status
		RETURNING (xmax = 0) AS inserted`,
		e.AccountID, e.ProductID, e.Status, e.ExternalReferenceID, e.PaymentReferenceID, string(e.Source), e.GrantedAt,
	).Scan(&inserted)
	if stderrors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, errors.NewQueryExecutionFailedError("upsert entitlement", err)
	}
	return inserted, nil
}

func (s *PostgresStore) FindProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var p models.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, slug, name, price_minor_units
		FROM products
		WHERE slug = $1 AND active`, slug).
		Scan(&p.ID, &p.Slug, &p.Name, &p.PriceMinorUnits)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewProductNotFoundError(slug)
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("find product by slug", err)
	}
	return &p, nil
}

// UpsertProduct creates or updates a catalog entry by slug and returns its id.
func (s *PostgresStore) UpsertProduct(ctx context.Context, p *models.Product) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO products (id, slug, name, price_minor_units, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (slug) DO UPDATE
			SET name = EXCLUDED.name,
			    price_minor_units = EXCLUDED.price_minor_units,
			    active = TRUE,
			    updated_at = now()
		RETURNING id`,
		p.ID, p.Slug, p.Name, p.PriceMinorUnits,
	).Scan(&id)
	if err != nil {
		return "", errors.NewQueryExecutionFailedError(fmt.Sprintf("upsert product %s", p.Slug), err)
	}
	return id, nil
}
