package funnelattribution

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"purchase-fulfillment/internal/common/errors"
	"purchase-fulfillment/internal/common/logger"
	"purchase-fulfillment/internal/models"
)

// ==========================
// Helpers
// ==========================

func newTestTracker(t *testing.T, handler http.HandlerFunc) *Tracker {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)

	tracker := NewTracker(client, DefaultConfig(), logger.NewTestLogger(t))
	tracker.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return tracker
}

func createValidPurchase() *models.Purchase {
	return &models.Purchase{
		Event: &models.PurchaseEvent{
			SourceEventType:     models.CheckoutCompleted,
			ExternalReferenceID: "cs_1",
			AmountMinorUnits:    700,
			Currency:            "usd",
		},
		Metadata: models.PurchaseMetadata{
			IncludeOrderBump: true,
			FunnelSessionID:  "fs_1",
			Source:           models.SourceFunnel,
			UTMCampaign:      "spring",
		},
	}
}

// ==========================
// RecordPurchase
// ==========================

func TestRecordPurchase(t *testing.T) {
	var got PurchaseDocument
	tracker := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/funnel-purchases/_doc/cs_1", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"cs_1","result":"created"}`))
	})

	require.NoError(t, tracker.RecordPurchase(context.Background(), createValidPurchase()))

	assert.Equal(t, "cs_1", got.ReferenceID)
	assert.Equal(t, int64(700), got.AmountMinorUnits)
	assert.True(t, got.HasOrderBump)
	assert.Equal(t, "fs_1", got.FunnelSessionID)
	assert.Equal(t, "checkout.session.completed", got.EventType)
	assert.Equal(t, "spring", got.UTMCampaign)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), got.RecordedAt)
}

func TestRecordPurchase_ErrorResponse(t *testing.T) {
	tracker := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"cluster_block_exception"}`))
	})

	err := tracker.RecordPurchase(context.Background(), createValidPurchase())

	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeIntegrationFailure))
}

// ==========================
// EnsureIndex
// ==========================

func TestEnsureIndex(t *testing.T) {
	t.Run("creates index", func(t *testing.T) {
		tracker := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/funnel-purchases", r.URL.Path)
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		})
		assert.NoError(t, tracker.EnsureIndex(context.Background()))
	})

	t.Run("existing index is fine", func(t *testing.T) {
		tracker := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"type":"resource_already_exists_exception"},"status":400}`))
		})
		assert.NoError(t, tracker.EnsureIndex(context.Background()))
	})

	t.Run("other failure", func(t *testing.T) {
		tracker := newTestTracker(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden"}`))
		})
		assert.True(t, errors.HasCode(tracker.EnsureIndex(context.Background()), errors.ErrCodeExternalService))
	})
}
