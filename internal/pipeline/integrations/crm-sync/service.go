package crmsync

import (
	"context"
	"fmt"
	"strings"

	"purchase-fulfillment/internal/common/auth"
	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/common/zoho"
	"purchase-fulfillment/internal/models"
)

// CRM is the marketing CRM surface this adapter needs.
type CRM interface {
	UpsertContact(ctx context.Context, contact *zoho.Contact) (string, error)
	AddTags(ctx context.Context, contactID string, tags []string) error
	CreateDeal(ctx context.Context, deal *zoho.Deal) (string, error)
}

type Service struct {
	config *Config
	crm    CRM
	logger logger.Logger
}

func NewService(crm CRM, config *Config, log logger.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &Service{
		config: config,
		crm:    crm,
		logger: log.WithFields(map[string]interface{}{"integration": models.IntegrationCRM}),
	}
}

func (s *Service) Name() string {
	return models.IntegrationCRM
}

// Sync upserts the buyer's profile by email, tags it with the purchase
// segments and records the purchase as a closed deal. Upserts are keyed by
// email, so a redelivery does not duplicate the contact.
func (s *Service) Sync(ctx context.Context, p *models.Purchase) error {
	first, last := auth.SplitName(p.Identity.FullName)

	contactID, err := s.crm.UpsertContact(ctx, &zoho.Contact{
		Email:     p.Identity.Email,
		FirstName: first,
		LastName:  last,
		Source:    s.config.LeadSource,
	})
	if err != nil {
		return errors.NewIntegrationError(s.Name(), fmt.Errorf("upsert profile: %w", err))
	}

	segments := []string{s.config.PrimarySegment}
	if p.Metadata.IncludeOrderBump && s.config.BumpSegment != "" {
		segments = append(segments, s.config.BumpSegment)
	}
	if err := s.crm.AddTags(ctx, contactID, segments); err != nil {
		return errors.NewIntegrationError(s.Name(), fmt.Errorf("add to segment: %w", err))
	}

	dealID, err := s.crm.CreateDeal(ctx, &zoho.Deal{
		Name:        dealName(p),
		Amount:      models.MinorToMajor(p.Event.AmountMinorUnits, p.Event.Currency),
		Currency:    strings.ToUpper(p.Event.Currency),
		Description: fmt.Sprintf("Reference %s, source %s", p.Event.ExternalReferenceID, p.Metadata.Source),
		Contact:     &zoho.Lookup{ID: contactID},
	})
	if err != nil {
		return errors.NewIntegrationError(s.Name(), fmt.Errorf("record event: %w", err))
	}

	s.logger.Debug("CRM purchase recorded", map[string]interface{}{
		"contactId":   contactID,
		"dealId":      dealID,
		"referenceId": p.Event.ExternalReferenceID,
	})
	return nil
}

func dealName(p *models.Purchase) string {
	name := "Purchase"
	if p.Grant != nil && p.Grant.Primary.Name != "" {
		name = p.Grant.Primary.Name
	}
	if p.Grant != nil && p.Grant.Bump != nil && p.Grant.Bump.Name != "" {
		name += " + " + p.Grant.Bump.Name
	}
	return name + " (" + p.Event.ExternalReferenceID + ")"
}
