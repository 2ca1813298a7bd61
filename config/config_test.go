package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStripeWebhookSecretFollowsAPIKey(t *testing.T) {
	cfg := Config{
		StripeWebhookSecretLive: "whsec_live",
		StripeWebhookSecretDev:  "whsec_dev",
	}

	cfg.StripeKey = "sk_live_abc"
	require.Equal(t, "whsec_live", cfg.StripeWebhookSecret())

	cfg.StripeKey = "sk_test_abc"
	require.Equal(t, "whsec_dev", cfg.StripeWebhookSecret())
}
