package payment

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"
)

// В событии checkout.session.completed подписка приходит голым id.
// mapSession обязан сохранить этот id и не выдумывать цену.
func TestMapSession_SubscriptionArrivesAsBareID(t *testing.T) {
	payload := []byte(`{
		"id": "cs_test_1",
		"mode": "subscription",
		"payment_status": "paid",
		"customer": "cus_42",
		"customer_details": {"email": "student@test.dev"},
		"client_reference_id": "ref_1",
		"subscription": "sub_123"
	}`)

	var sess stripe.CheckoutSession
	require.NoError(t, json.Unmarshal(payload, &sess))

	out := mapSession(&sess)
	require.Equal(t, ModeSubscription, out.Mode)
	require.True(t, out.Paid)
	require.Equal(t, "sub_123", out.SubscriptionID)
	require.Empty(t, out.PriceID)
	require.Equal(t, "cus_42", out.CustomerID)
	require.Equal(t, "student@test.dev", out.CustomerEmail)
}

// Развёрнутая подписка с позициями отдаёт цену сразу, без второго похода.
func TestMapSession_ExpandedSubscriptionCarriesPrice(t *testing.T) {
	payload := []byte(`{
		"id": "cs_test_2",
		"mode": "subscription",
		"payment_status": "paid",
		"subscription": {
			"id": "sub_456",
			"items": {"data": [{"price": {"id": "price_year"}}]}
		}
	}`)

	var sess stripe.CheckoutSession
	require.NoError(t, json.Unmarshal(payload, &sess))

	out := mapSession(&sess)
	require.Equal(t, "sub_456", out.SubscriptionID)
	require.Equal(t, "price_year", out.PriceID)
}
