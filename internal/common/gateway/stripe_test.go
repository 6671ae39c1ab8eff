package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"
)

func TestCustomerFromStripe(t *testing.T) {
	var cust stripe.Customer
	require.NoError(t, json.Unmarshal([]byte(`{"id":"cus_1","email":"Buyer@Example.com","name":"Ada","deleted":true}`), &cust))

	got := customerFromStripe(&cust)

	assert.Equal(t, "cus_1", got.ID)
	assert.Equal(t, "Buyer@Example.com", got.Email)
	assert.Equal(t, "Ada", got.Name)
	assert.True(t, got.Deleted)
	assert.Nil(t, customerFromStripe(nil))
}

func TestChargeFromIntent(t *testing.T) {
	t.Run("expanded latest charge", func(t *testing.T) {
		var pi stripe.PaymentIntent
		require.NoError(t, json.Unmarshal([]byte(`{
			"id": "pi_1",
			"latest_charge": {
				"id": "ch_1",
				"receipt_email": "receipt@example.com",
				"billing_details": {"email": "billing@example.com", "name": "Grace Hopper"}
			}
		}`), &pi))

		got := chargeFromIntent(&pi)

		require.NotNil(t, got)
		assert.Equal(t, "ch_1", got.ID)
		assert.Equal(t, "billing@example.com", got.BillingEmail)
		assert.Equal(t, "Grace Hopper", got.BillingName)
		assert.Equal(t, "receipt@example.com", got.ReceiptEmail)
	})

	t.Run("no charge yet", func(t *testing.T) {
		var pi stripe.PaymentIntent
		require.NoError(t, json.Unmarshal([]byte(`{"id": "pi_2"}`), &pi))
		assert.Nil(t, chargeFromIntent(&pi))
	})
}
