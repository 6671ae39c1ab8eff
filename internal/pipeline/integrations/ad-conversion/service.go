package adconversion

import (
	"context"
	"strings"
	"time"

	"purchase-fulfillment/internal/common/auth"
	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/common/meta"
	"purchase-fulfillment/internal/models"
)

type ConversionSender interface {
	Send(ctx context.Context, events ...meta.Event) error
}

type Service struct {
	config *Config
	sender ConversionSender
	logger logger.Logger
	now    func() time.Time
}

func NewService(sender ConversionSender, config *Config, log logger.Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &Service{
		config: config,
		sender: sender,
		logger: log.WithFields(map[string]interface{}{"integration": models.IntegrationAds}),
		now:    time.Now,
	}
}

func (s *Service) Name() string {
	return models.IntegrationAds
}

// Sync reports a server-side purchase conversion. The event id is the purchase
// reference so the ad platform can deduplicate against the browser pixel and
// against redeliveries.
func (s *Service) Sync(ctx context.Context, p *models.Purchase) error {
	event := s.buildEvent(p)
	if err := s.sender.Send(ctx, event); err != nil {
		return errors.NewIntegrationError(s.Name(), err)
	}
	s.logger.Debug("Conversion reported", map[string]interface{}{
		"eventId": event.EventID,
		"value":   event.CustomData.Value,
	})
	return nil
}

func (s *Service) buildEvent(p *models.Purchase) meta.Event {
	contentIDs := []string{s.config.PrimaryContentID}
	if p.Metadata.IncludeOrderBump && s.config.BumpContentID != "" {
		contentIDs = append(contentIDs, s.config.BumpContentID)
	}

	user := meta.UserData{
		Email:           []string{meta.HashIdentifier(p.Identity.Email)},
		ClientIPAddress: p.Metadata.ClientIP,
		ClientUserAgent: p.Metadata.UserAgent,
		FBC:             p.Metadata.FBC,
		FBP:             p.Metadata.FBP,
	}
	if first, last := auth.SplitName(p.Identity.FullName); first != "" {
		user.FirstName = []string{meta.HashIdentifier(first)}
		if last != "" {
			user.LastName = []string{meta.HashIdentifier(last)}
		}
	}
	if p.AccountID != "" {
		user.ExternalID = []string{meta.HashIdentifier(p.AccountID)}
	}

	return meta.Event{
		EventName:    s.config.EventName,
		EventTime:    s.now().Unix(),
		EventID:      p.Event.ExternalReferenceID,
		ActionSource: s.config.ActionSource,
		UserData:     user,
		CustomData: meta.CustomData{
			Currency:    strings.ToUpper(p.Event.Currency),
			Value:       models.MinorToMajor(p.Event.AmountMinorUnits, p.Event.Currency),
			ContentIDs:  contentIDs,
			ContentType: "product",
			OrderID:     p.Event.ExternalReferenceID,
			NumItems:    len(contentIDs),
		},
	}
}
