package automationtrigger

import (
	"context"
	"fmt"
	"time"

	"purchase-fulfillment/internal/common/camunda"
	"purchase-fulfillment/internal/models"
)

// Engine is the automation engine's entry points. Both are fire-and-forget
// from the purchase's point of view.
type Engine interface {
	OnNewAccount(ctx context.Context, accountID string) error
	OnPurchase(ctx context.Context, accountID, productID, productName string) error
}

type MessagePublisher interface {
	PublishMessage(ctx context.Context, msg camunda.Message) error
}

// ZeebeEngine correlates signals as Zeebe messages keyed by account. The
// message id makes a redelivered signal a no-op within the TTL.
type ZeebeEngine struct {
	publisher MessagePublisher
	ttl       time.Duration
}

func NewZeebeEngine(publisher MessagePublisher, ttl time.Duration) *ZeebeEngine {
	return &ZeebeEngine{publisher: publisher, ttl: ttl}
}

func (z *ZeebeEngine) OnNewAccount(ctx context.Context, accountID string) error {
	signal := models.AutomationSignal{Type: models.SignalNewAccount, AccountID: accountID}
	return z.publisher.PublishMessage(ctx, camunda.Message{
		Name:           string(signal.Type),
		CorrelationKey: accountID,
		ID:             signal.DedupKey(),
		TTL:            z.ttl,
		Variables:      map[string]interface{}{"accountId": accountID},
	})
}

func (z *ZeebeEngine) OnPurchase(ctx context.Context, accountID, productID, productName string) error {
	signal := models.AutomationSignal{Type: models.SignalPurchase, AccountID: accountID, ProductID: productID}
	return z.publisher.PublishMessage(ctx, camunda.Message{
		Name:           string(signal.Type),
		CorrelationKey: accountID,
		ID:             signal.DedupKey(),
		TTL:            z.ttl,
		Variables: map[string]interface{}{
			"accountId":   accountID,
			"productId":   productID,
			"productName": productName,
		},
	})
}

type JSONPublisher interface {
	PublishJSON(ctx context.Context, topicARN string, payload interface{}, attributes map[string]string) (string, error)
}

// SNSEngine fans signals out on a topic; subscribers filter on the "signal"
// message attribute.
type SNSEngine struct {
	publisher JSONPublisher
	topicARN  string
}

func NewSNSEngine(publisher JSONPublisher, topicARN string) *SNSEngine {
	return &SNSEngine{publisher: publisher, topicARN: topicARN}
}

func (s *SNSEngine) OnNewAccount(ctx context.Context, accountID string) error {
	return s.publish(ctx, models.AutomationSignal{Type: models.SignalNewAccount, AccountID: accountID})
}

func (s *SNSEngine) OnPurchase(ctx context.Context, accountID, productID, productName string) error {
	return s.publish(ctx, models.AutomationSignal{
		Type:        models.SignalPurchase,
		AccountID:   accountID,
		ProductID:   productID,
		ProductName: productName,
	})
}

func (s *SNSEngine) publish(ctx context.Context, signal models.AutomationSignal) error {
	_, err := s.publisher.PublishJSON(ctx, s.topicARN, signal, map[string]string{
		"signal":   string(signal.Type),
		"dedupKey": signal.DedupKey(),
	})
	return err
}

// NewEngine builds the engine the driver names. The none driver yields a nil
// engine, which means no automation step is wired.
func NewEngine(cfg *Config, zeebe MessagePublisher, sns JSONPublisher) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverCamunda:
		if zeebe == nil {
			return nil, fmt.Errorf("camunda driver needs a message publisher")
		}
		return NewZeebeEngine(zeebe, cfg.MessageTTL), nil
	case DriverSNS:
		if sns == nil {
			return nil, fmt.Errorf("sns driver needs a topic publisher")
		}
		return NewSNSEngine(sns, cfg.TopicARN), nil
	default:
		return nil, nil
	}
}
