package billing

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v81"
)

// StripeConfig holds the billing provider settings the service needs:
// API credentials, the webhook signing secret, and the mapping between
// plan tiers and Stripe prices.
type StripeConfig struct {
	// SecretKey is the Stripe secret API key (sk_test_* or sk_live_*).
	SecretKey string `json:"secret_key" mapstructure:"secret_key"`

	// PublishableKey is exposed to browser clients.
	PublishableKey string `json:"publishable_key" mapstructure:"publishable_key"`

	// WebhookSecret verifies webhook signatures.
	WebhookSecret string `json:"webhook_secret" mapstructure:"webhook_secret"`

	// IsTestMode pins the key prefix check to test or live keys.
	IsTestMode bool `json:"is_test_mode" mapstructure:"is_test_mode"`

	// DefaultCurrency for subscriptions, e.g. "usd".
	DefaultCurrency string `json:"default_currency" mapstructure:"default_currency"`

	// PriceIDs maps plan tier names to Stripe price IDs.
	PriceIDs map[string]string `json:"price_ids" mapstructure:"price_ids"`
}

// Validate checks the configuration for a usable key and currency, and
// catches test keys in live mode and vice versa.
func (c *StripeConfig) Validate() error {
	if c.SecretKey == "" {
		return fmt.Errorf("stripe: secret key is required")
	}

	if c.IsTestMode {
		if len(c.SecretKey) > 7 && !strings.HasPrefix(c.SecretKey, "sk_test") {
			return fmt.Errorf("stripe: test mode enabled but secret key is not a test key")
		}
	} else if len(c.SecretKey) > 7 && !strings.HasPrefix(c.SecretKey, "sk_live") {
		return fmt.Errorf("stripe: live mode enabled but secret key is not a live key")
	}

	if c.DefaultCurrency == "" {
		return fmt.Errorf("stripe: default currency is required")
	}

	return nil
}

// TierForPriceID resolves a Stripe price ID back to the plan tier it was
// configured under. Returns "" when the price is not in the mapping.
func (c *StripeConfig) TierForPriceID(priceID string) string {
	if priceID == "" {
		return ""
	}
	for tier, id := range c.PriceIDs {
		if id == priceID {
			return tier
		}
	}
	return ""
}

// InitStripeClient points the Stripe SDK at the configured API key.
func (c *StripeConfig) InitStripeClient() {
	stripe.Key = c.SecretKey
}
