package stripe

import (
	"context"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
)

// Checkout creates subscription checkout sessions for the configured price.
// The Stripe API key is process-global (stripeapi.Key), set by the
// composition root.
type Checkout struct {
	priceID    string
	successURL string
	cancelURL  string
}

// NewCheckout creates a checkout helper. Success and cancel URLs are derived
// from the admin host of the base domain, matching where the billing
// provider redirects the customer after payment.
func NewCheckout(priceID, baseDomain string) *Checkout {
	return &Checkout{
		priceID:    priceID,
		successURL: fmt.Sprintf("https://admin.%s/success?session_id={CHECKOUT_SESSION_ID}", baseDomain),
		cancelURL:  fmt.Sprintf("https://admin.%s/?cancelled=true", baseDomain),
	}
}

// Start creates a subscription-mode checkout session and returns the hosted
// payment page URL to redirect the customer to.
func (c *Checkout) Start(ctx context.Context) (string, error) {
	params := &stripeapi.CheckoutSessionParams{
		Mode: stripeapi.String(string(stripeapi.CheckoutSessionModeSubscription)),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				Price:    stripeapi.String(c.priceID),
				Quantity: stripeapi.Int64(1),
			},
		},
		SuccessURL: stripeapi.String(c.successURL),
		CancelURL:  stripeapi.String(c.cancelURL),
	}
	params.Context = ctx

	s, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("creating checkout session: %w", err)
	}

	return s.URL, nil
}
