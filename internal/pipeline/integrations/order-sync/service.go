package ordersync

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"purchase-fulfillment/internal/common/auth"
	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/common/shopify"
	"purchase-fulfillment/internal/models"
)

type OrderSystem interface {
	FindOrCreateCustomer(ctx context.Context, customer *shopify.Customer) (*shopify.Customer, error)
	CreateOrder(ctx context.Context, order *shopify.Order) (*shopify.Order, error)
}

type Service struct {
	config *Config
	orders OrderSystem
	logger logger.Logger
}

func NewService(orders OrderSystem, config *Config, log logger.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &Service{
		config: config,
		orders: orders,
		logger: log.WithFields(map[string]interface{}{"integration": models.IntegrationOrders}),
	}
}

func (s *Service) Name() string {
	return models.IntegrationOrders
}

// Sync mirrors the purchase as a paid order in the order system.
func (s *Service) Sync(ctx context.Context, p *models.Purchase) error {
	first, last := auth.SplitName(p.Identity.FullName)
	customer, err := s.orders.FindOrCreateCustomer(ctx, &shopify.Customer{
		Email:     p.Identity.Email,
		FirstName: first,
		LastName:  last,
		Tags:      strings.Join(s.config.Tags, ", "),
	})
	if err != nil {
		return errors.NewIntegrationError(s.Name(), fmt.Errorf("find or create customer: %w", err))
	}

	order, err := s.orders.CreateOrder(ctx, s.buildOrder(p, customer))
	if err != nil {
		return errors.NewIntegrationError(s.Name(), fmt.Errorf("create order: %w", err))
	}

	s.logger.Debug("Order created", map[string]interface{}{
		"orderId":     order.ID,
		"referenceId": p.Event.ExternalReferenceID,
	})
	return nil
}

func (s *Service) buildOrder(p *models.Purchase, customer *shopify.Customer) *shopify.Order {
	primaryPrice := p.Event.AmountMinorUnits
	exponent := models.CurrencyExponent(p.Event.Currency)
	var items []shopify.LineItem

	if p.Metadata.IncludeOrderBump {
		bumpPrice := s.bumpPrice(p)
		if bumpPrice > primaryPrice {
			bumpPrice = primaryPrice
		}
		primaryPrice -= bumpPrice
		items = append(items, shopify.LineItem{
			Title:    s.title(p, true),
			SKU:      s.config.BumpSKU,
			Price:    shopify.FormatPrice(bumpPrice, exponent),
			Quantity: 1,
		})
	}

	items = append([]shopify.LineItem{{
		Title:    s.title(p, false),
		SKU:      s.config.PrimarySKU,
		Price:    shopify.FormatPrice(primaryPrice, exponent),
		Quantity: 1,
	}}, items...)

	notes := []shopify.NoteAttribute{
		{Name: "reference_id", Value: p.Event.ExternalReferenceID},
	}
	if p.Event.PaymentReferenceID != "" {
		notes = append(notes, shopify.NoteAttribute{Name: "payment_reference_id", Value: p.Event.PaymentReferenceID})
	}
	if p.Metadata.FunnelSessionID != "" {
		notes = append(notes, shopify.NoteAttribute{Name: "funnel_session_id", Value: p.Metadata.FunnelSessionID})
	}

	tags := append([]string{}, s.config.Tags...)
	if p.Metadata.Source != "" && !slices.Contains(tags, string(p.Metadata.Source)) {
		tags = append(tags, string(p.Metadata.Source))
	}

	return &shopify.Order{
		Email:           p.Identity.Email,
		Currency:        strings.ToUpper(p.Event.Currency),
		FinancialStatus: "paid",
		Tags:            strings.Join(tags, ", "),
		SourceName:      s.config.SourceName,
		Customer:        &shopify.Customer{ID: customer.ID},
		LineItems:       items,
		NoteAttributes:  notes,
	}
}

// bumpPrice prefers the catalog price recorded on the grant over the
// configured one.
func (s *Service) bumpPrice(p *models.Purchase) int64 {
	if p.Grant != nil && p.Grant.Bump != nil && p.Grant.Bump.PriceMinorUnits > 0 {
		return p.Grant.Bump.PriceMinorUnits
	}
	return s.config.BumpPriceMinorUnits
}

// title prefers the catalog name from the grant over the configured title.
func (s *Service) title(p *models.Purchase, bump bool) string {
	if p.Grant != nil {
		if bump && p.Grant.Bump != nil && p.Grant.Bump.Name != "" {
			return p.Grant.Bump.Name
		}
		if !bump && p.Grant.Primary.Name != "" {
			return p.Grant.Primary.Name
		}
	}
	if bump {
		return s.config.BumpTitle
	}
	return s.config.PrimaryTitle
}
