package resolveidentity

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/common/gateway"
	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/models"
)

// ==========================
// Mock Gateway
// ==========================

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) GetCustomer(ctx context.Context, customerID string) (*gateway.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Customer), args.Error(1)
}

func (m *MockGateway) GetLatestCharge(ctx context.Context, paymentIntentID string) (*gateway.Charge, error) {
	args := m.Called(ctx, paymentIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Charge), args.Error(1)
}

// ==========================
// Helpers
// ==========================

func paymentEvent(customerID string) *models.PurchaseEvent {
	e := &models.PurchaseEvent{
		DeliveryID:          "evt_1",
		SourceEventType:     models.PaymentSucceeded,
		ExternalReferenceID: "pi_1",
		PaymentReferenceID:  "pi_1",
	}
	if customerID != "" {
		e.CustomerRef = &models.CustomerRef{ID: customerID}
	}
	return e
}

func newTestResolver(t *testing.T, gw PaymentGateway) *Resolver {
	t.Helper()
	r, err := NewResolver(DefaultConfig(), gw, logger.NewTestLogger(t))
	require.NoError(t, err)
	return r
}

// ==========================
// Checkout sessions
// ==========================

func TestResolve_CheckoutUsesSessionDetails(t *testing.T) {
	gw := new(MockGateway)
	r := newTestResolver(t, gw)

	event := &models.PurchaseEvent{
		SourceEventType:     models.CheckoutCompleted,
		ExternalReferenceID: "cs_1",
		CheckoutEmail:       "Jane@Example.com",
		CheckoutName:        "Jane Doe",
		CustomerRef:         &models.CustomerRef{ID: "cus_1"},
	}

	id, err := r.Resolve(context.Background(), event, models.PurchaseMetadata{CustomerEmail: "other@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", id.Email)
	assert.Equal(t, "Jane Doe", id.FullName)
	gw.AssertNotCalled(t, "GetCustomer", mock.Anything, mock.Anything)
}

func TestResolve_CheckoutPlaceholderFallsBackToMetadata(t *testing.T) {
	r := newTestResolver(t, new(MockGateway))

	event := &models.PurchaseEvent{
		SourceEventType: models.CheckoutCompleted,
		CheckoutEmail:   "customer@placeholder.invalid",
	}

	id, err := r.Resolve(context.Background(), event, models.PurchaseMetadata{CustomerEmail: "real@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "real@example.com", id.Email)
}

// ==========================
// Payment intents
// ==========================

func TestResolve_MetadataWinsOverCustomerRecord(t *testing.T) {
	gw := new(MockGateway)
	r := newTestResolver(t, gw)

	id, err := r.Resolve(context.Background(), paymentEvent("cus_1"), models.PurchaseMetadata{CustomerEmail: "a@x.com"})
	require.NoError(t, err)

	assert.Equal(t, "a@x.com", id.Email)
	gw.AssertNotCalled(t, "GetCustomer", mock.Anything, mock.Anything)
}

func TestResolve_FallbackChain(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(gw *MockGateway)
		wantEmail string
		wantName  string
	}{
		{
			name: "customer record",
			setup: func(gw *MockGateway) {
				gw.On("GetCustomer", mock.Anything, "cus_1").Return(&gateway.Customer{ID: "cus_1", Email: "b@x.com", Name: "Bea"}, nil)
			},
			wantEmail: "b@x.com",
			wantName:  "Bea",
		},
		{
			name: "deleted customer falls through to charge",
			setup: func(gw *MockGateway) {
				gw.On("GetCustomer", mock.Anything, "cus_1").Return(&gateway.Customer{ID: "cus_1", Email: "gone@x.com", Deleted: true}, nil)
				gw.On("GetLatestCharge", mock.Anything, "pi_1").Return(&gateway.Charge{ID: "ch_1", BillingEmail: "c@x.com", BillingName: "Cy"}, nil)
			},
			wantEmail: "c@x.com",
			wantName:  "Cy",
		},
		{
			name: "customer lookup error falls through to charge",
			setup: func(gw *MockGateway) {
				gw.On("GetCustomer", mock.Anything, "cus_1").Return(nil, fmt.Errorf("stripe down"))
				gw.On("GetLatestCharge", mock.Anything, "pi_1").Return(&gateway.Charge{ID: "ch_1", BillingEmail: "c@x.com"}, nil)
			},
			wantEmail: "c@x.com",
		},
		{
			name: "placeholder on customer record is skipped",
			setup: func(gw *MockGateway) {
				gw.On("GetCustomer", mock.Anything, "cus_1").Return(&gateway.Customer{ID: "cus_1", Email: "customer@placeholder.invalid", Name: "Dee"}, nil)
				gw.On("GetLatestCharge", mock.Anything, "pi_1").Return(&gateway.Charge{ID: "ch_1", BillingEmail: "d@x.com"}, nil)
			},
			wantEmail: "d@x.com",
			wantName:  "Dee",
		},
		{
			name: "receipt email is the last resort",
			setup: func(gw *MockGateway) {
				gw.On("GetCustomer", mock.Anything, "cus_1").Return(&gateway.Customer{ID: "cus_1"}, nil)
				gw.On("GetLatestCharge", mock.Anything, "pi_1").Return(&gateway.Charge{ID: "ch_1", ReceiptEmail: "e@x.com"}, nil)
			},
			wantEmail: "e@x.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := new(MockGateway)
			tt.setup(gw)
			r := newTestResolver(t, gw)

			id, err := r.Resolve(context.Background(), paymentEvent("cus_1"), models.PurchaseMetadata{})
			require.NoError(t, err)

			assert.Equal(t, tt.wantEmail, id.Email)
			assert.Equal(t, tt.wantName, id.FullName)
			gw.AssertExpectations(t)
		})
	}
}

func TestResolve_ChargeFetchedOnce(t *testing.T) {
	gw := new(MockGateway)
	gw.On("GetLatestCharge", mock.Anything, "pi_1").Return(&gateway.Charge{ID: "ch_1", ReceiptEmail: "r@x.com"}, nil).Once()
	r := newTestResolver(t, gw)

	id, err := r.Resolve(context.Background(), paymentEvent(""), models.PurchaseMetadata{})
	require.NoError(t, err)

	assert.Equal(t, "r@x.com", id.Email)
	gw.AssertNumberOfCalls(t, "GetLatestCharge", 1)
}

func TestResolve_MetadataNameKeptWhenEmailComesLater(t *testing.T) {
	gw := new(MockGateway)
	gw.On("GetCustomer", mock.Anything, "cus_1").Return(&gateway.Customer{ID: "cus_1", Email: "b@x.com", Name: "Record Name"}, nil)
	r := newTestResolver(t, gw)

	id, err := r.Resolve(context.Background(), paymentEvent("cus_1"), models.PurchaseMetadata{CustomerName: "Typed Name"})
	require.NoError(t, err)

	assert.Equal(t, "b@x.com", id.Email)
	assert.Equal(t, "Typed Name", id.FullName)
}

// ==========================
// Failures
// ==========================

func TestResolve_MissingIdentity(t *testing.T) {
	tests := []struct {
		name  string
		meta  models.PurchaseMetadata
		setup func(gw *MockGateway)
	}{
		{
			name: "nothing anywhere",
			setup: func(gw *MockGateway) {
				gw.On("GetCustomer", mock.Anything, "cus_1").Return(&gateway.Customer{ID: "cus_1"}, nil)
				gw.On("GetLatestCharge", mock.Anything, "pi_1").Return(nil, nil)
			},
		},
		{
			name: "only the placeholder",
			meta: models.PurchaseMetadata{CustomerEmail: "Customer@Placeholder.Invalid"},
			setup: func(gw *MockGateway) {
				gw.On("GetCustomer", mock.Anything, "cus_1").Return(nil, fmt.Errorf("not found"))
				gw.On("GetLatestCharge", mock.Anything, "pi_1").Return(&gateway.Charge{ID: "ch_1"}, nil)
			},
		},
		{
			name: "malformed metadata email",
			meta: models.PurchaseMetadata{CustomerEmail: "not-an-email"},
			setup: func(gw *MockGateway) {
				gw.On("GetCustomer", mock.Anything, "cus_1").Return(&gateway.Customer{ID: "cus_1"}, nil)
				gw.On("GetLatestCharge", mock.Anything, "pi_1").Return(nil, fmt.Errorf("timeout"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := new(MockGateway)
			tt.setup(gw)
			r := newTestResolver(t, gw)

			id, err := r.Resolve(context.Background(), paymentEvent("cus_1"), tt.meta)

			assert.Nil(t, id)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeMissingIdentity))
		})
	}
}

// ==========================
// Config
// ==========================

func TestNewResolver_ValidatesConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{name: "defaults", config: DefaultConfig()},
		{name: "nil uses defaults", config: nil},
		{name: "no placeholders", config: &Config{}},
		{name: "blank entry", config: &Config{PlaceholderEmails: []string{"customer@placeholder.invalid", "  "}}, wantErr: true},
		{name: "empty entry", config: &Config{PlaceholderEmails: []string{""}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewResolver(tt.config, new(MockGateway), logger.NewNoOpLogger())
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, r)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, r)
		})
	}
}
