package adconversion

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/common/meta"
	"purchase-fulfillment/internal/models"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, events ...meta.Event) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func createValidPurchase() *models.Purchase {
	return &models.Purchase{
		Event: &models.PurchaseEvent{ExternalReferenceID: "cs_1", AmountMinorUnits: 1400, Currency: "usd"},
		Metadata: models.PurchaseMetadata{
			IncludeOrderBump: true,
			ClientIP:         "203.0.113.7",
			UserAgent:        "Mozilla/5.0",
			FBP:              "fb.1.1700000000.123",
		},
		Identity:  models.ResolvedIdentity{Email: "buyer@example.com", FullName: "Jane Doe"},
		AccountID: "acct-1",
	}
}

func TestBuildEvent(t *testing.T) {
	svc := NewService(new(MockSender), DefaultConfig(), logger.NewNoOpLogger())
	svc.now = func() time.Time { return time.Unix(1700000000, 0) }

	event := svc.buildEvent(createValidPurchase())

	assert.Equal(t, "Purchase", event.EventName)
	assert.Equal(t, int64(1700000000), event.EventTime)
	assert.Equal(t, "cs_1", event.EventID)
	assert.Equal(t, "website", event.ActionSource)
	assert.Equal(t, []string{"6a6c26195c3682faa816966af789717c3bfa834eee6c599d667d2b3429c27cfd"}, event.UserData.Email)
	assert.Equal(t, []string{meta.HashIdentifier("jane")}, event.UserData.FirstName)
	assert.Equal(t, []string{meta.HashIdentifier("doe")}, event.UserData.LastName)
	assert.Equal(t, "203.0.113.7", event.UserData.ClientIPAddress)
	assert.Equal(t, "fb.1.1700000000.123", event.UserData.FBP)
	assert.Equal(t, "USD", event.CustomData.Currency)
	assert.Equal(t, 14.0, event.CustomData.Value)
	assert.Equal(t, []string{"resistance-mapping-guide", "golden-thread-technique"}, event.CustomData.ContentIDs)
	assert.Equal(t, 2, event.CustomData.NumItems)
	assert.Equal(t, "cs_1", event.CustomData.OrderID)
}

func TestBuildEvent_ZeroDecimalCurrency(t *testing.T) {
	svc := NewService(new(MockSender), DefaultConfig(), logger.NewNoOpLogger())
	p := createValidPurchase()
	p.Event.Currency = "jpy"
	p.Event.AmountMinorUnits = 2000

	event := svc.buildEvent(p)

	assert.Equal(t, "JPY", event.CustomData.Currency)
	assert.Equal(t, 2000.0, event.CustomData.Value)
}

func TestBuildEvent_NoBumpNoName(t *testing.T) {
	svc := NewService(new(MockSender), DefaultConfig(), logger.NewNoOpLogger())
	p := createValidPurchase()
	p.Metadata.IncludeOrderBump = false
	p.Identity.FullName = ""
	p.AccountID = ""

	event := svc.buildEvent(p)

	assert.Equal(t, []string{"resistance-mapping-guide"}, event.CustomData.ContentIDs)
	assert.Empty(t, event.UserData.FirstName)
	assert.Empty(t, event.UserData.ExternalID)
}

func TestSync(t *testing.T) {
	t.Run("sends one event", func(t *testing.T) {
		sender := new(MockSender)
		sender.On("Send", mock.Anything, mock.MatchedBy(func(events []meta.Event) bool {
			return len(events) == 1 && events[0].EventID == "cs_1"
		})).Return(nil)
		svc := NewService(sender, DefaultConfig(), logger.NewTestLogger(t))

		require.NoError(t, svc.Sync(context.Background(), createValidPurchase()))
		assert.Equal(t, models.IntegrationAds, svc.Name())
		sender.AssertExpectations(t)
	})

	t.Run("failure is an integration error", func(t *testing.T) {
		sender := new(MockSender)
		sender.On("Send", mock.Anything, mock.Anything).Return(fmt.Errorf("events_received 0"))
		svc := NewService(sender, DefaultConfig(), logger.NewTestLogger(t))

		err := svc.Sync(context.Background(), createValidPurchase())
		assert.True(t, errors.HasCode(err, errors.ErrCodeIntegrationFailure))
	})
}
