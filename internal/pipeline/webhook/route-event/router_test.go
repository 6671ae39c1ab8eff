package routeevent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/models"
)

// ==========================
// Helpers
// ==========================

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	r, err := NewRouter(DefaultConfig())
	require.NoError(t, err)
	return r
}

func createEvent(eventType models.SourceEventType, metadata map[string]string) *models.PurchaseEvent {
	return &models.PurchaseEvent{
		DeliveryID:          "evt_1",
		SourceEventType:     eventType,
		RawEventType:        string(eventType),
		ExternalReferenceID: "ref_1",
		Metadata:            metadata,
	}
}

// ==========================
// Config
// ==========================

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.ProductDiscriminator = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.DefaultSource = "email"
	assert.Error(t, cfg.Validate())
}

// ==========================
// Routing
// ==========================

func TestRoute_Decisions(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name     string
		event    *models.PurchaseEvent
		want     Decision
		wantCode errors.ErrorCode
	}{
		{
			name:  "checkout session without product is processed",
			event: createEvent(models.CheckoutCompleted, nil),
			want:  DecisionProcess,
		},
		{
			name:  "checkout session for another product is processed",
			event: createEvent(models.CheckoutCompleted, map[string]string{"product": "other"}),
			want:  DecisionProcess,
		},
		{
			name:  "payment intent for this funnel is processed",
			event: createEvent(models.PaymentSucceeded, map[string]string{"product": "resistance_map"}),
			want:  DecisionProcess,
		},
		{
			name:     "payment intent for another product is filtered",
			event:    createEvent(models.PaymentSucceeded, map[string]string{"product": "coaching"}),
			want:     DecisionIgnoreFiltered,
			wantCode: errors.ErrCodeFilteredEventType,
		},
		{
			name:     "payment intent without metadata is filtered",
			event:    createEvent(models.PaymentSucceeded, nil),
			want:     DecisionIgnoreFiltered,
			wantCode: errors.ErrCodeFilteredEventType,
		},
		{
			name:     "unrecognized type is ignored",
			event:    createEvent(models.Unrecognized, nil),
			want:     DecisionIgnoreUnrecognized,
			wantCode: errors.ErrCodeUnrecognizedEventType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := r.Route(tt.event)
			assert.Equal(t, tt.want, result.Decision)
			if tt.wantCode == "" {
				assert.True(t, result.Process())
				assert.Nil(t, result.Reason)
				return
			}
			assert.False(t, result.Process())
			assert.True(t, errors.HasCode(result.Reason, tt.wantCode))
		})
	}
}

// ==========================
// Metadata
// ==========================

func TestRoute_Metadata(t *testing.T) {
	r := newTestRouter(t)

	result := r.Route(createEvent(models.CheckoutCompleted, map[string]string{
		"customerEmail":    " Ada@Example.com ",
		"customerName":     "Ada Lovelace",
		"includeOrderBump": "true",
		"funnelSessionId":  "fs_1",
		"source":           "portal",
		"fbp":              "fb.1.123",
	}))

	require.True(t, result.Process())
	assert.Empty(t, result.Warnings)
	assert.Equal(t, "Ada@Example.com", result.Metadata.CustomerEmail)
	assert.Equal(t, "Ada Lovelace", result.Metadata.CustomerName)
	assert.True(t, result.Metadata.IncludeOrderBump)
	assert.Equal(t, "fs_1", result.Metadata.FunnelSessionID)
	assert.Equal(t, models.SourcePortal, result.Metadata.Source)
	assert.Equal(t, "fb.1.123", result.Metadata.FBP)
}

func TestRoute_MetadataDefaults(t *testing.T) {
	r := newTestRouter(t)

	result := r.Route(createEvent(models.CheckoutCompleted, nil))

	assert.False(t, result.Metadata.IncludeOrderBump)
	assert.Equal(t, models.SourceFunnel, result.Metadata.Source)
}

func TestRoute_InvalidMetadataIsDropped(t *testing.T) {
	r := newTestRouter(t)

	result := r.Route(createEvent(models.CheckoutCompleted, map[string]string{
		"includeOrderBump": "yes please",
		"source":           "newsletter",
		"customerEmail":    strings.Repeat("a", 400) + "@example.com",
		"funnelSessionId":  "fs_ok",
	}))

	require.True(t, result.Process())
	assert.Len(t, result.Warnings, 3)
	assert.False(t, result.Metadata.IncludeOrderBump)
	assert.Equal(t, models.SourceFunnel, result.Metadata.Source)
	assert.Empty(t, result.Metadata.CustomerEmail)
	assert.Equal(t, "fs_ok", result.Metadata.FunnelSessionID)
}
