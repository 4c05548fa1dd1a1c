// Package stripe adapts Stripe webhooks and the checkout API to the domain
// ports: signature verification with payload normalization on the way in,
// checkout session creation on the way out.
package stripe

import (
	"encoding/json"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/neomorfeo/provisiq/internal/domain"
)

// Compile-time check: Verifier implements domain.EventVerifier.
var _ domain.EventVerifier = (*Verifier)(nil)

// Verifier authenticates webhook payloads against the shared signing secret
// and normalizes them into domain billing events.
type Verifier struct {
	secret string
}

// NewVerifier creates a verifier for the given webhook signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify checks the Stripe-Signature header against the raw payload and maps
// the event into a domain.BillingEvent. A bad signature or an unparsable
// payload both yield a wrapped domain.ErrInvalidSignature; event types
// outside the handled set come back as BillingUnknown.
func (v *Verifier) Verify(payload []byte, signature string) (domain.BillingEvent, error) {
	// Tolerate API version drift: the payload shape for the fields we
	// read has been stable across versions.
	event, err := webhook.ConstructEventWithOptions(payload, signature, v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return domain.BillingEvent{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	be := domain.BillingEvent{
		Type:         domain.BillingUnknown,
		ProviderType: event.Type,
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripeapi.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return domain.BillingEvent{}, fmt.Errorf("%w: decoding checkout session: %v", domain.ErrInvalidSignature, err)
		}

		be.Type = domain.BillingCheckoutCompleted
		if session.CustomerDetails != nil {
			be.Email = session.CustomerDetails.Email
		}
		if session.Customer != nil {
			be.BillingCustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			be.SubscriptionID = session.Subscription.ID
		}

	case "customer.subscription.deleted":
		var sub stripeapi.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return domain.BillingEvent{}, fmt.Errorf("%w: decoding subscription: %v", domain.ErrInvalidSignature, err)
		}

		be.Type = domain.BillingSubscriptionDeleted
		be.SubscriptionID = sub.ID

	case "invoice.payment_failed", "invoice.payment_succeeded":
		var invoice stripeapi.Invoice
		if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
			return domain.BillingEvent{}, fmt.Errorf("%w: decoding invoice: %v", domain.ErrInvalidSignature, err)
		}

		be.Type = domain.BillingPaymentFailed
		if event.Type == "invoice.payment_succeeded" {
			be.Type = domain.BillingPaymentSucceeded
		}
		if invoice.Subscription != nil {
			be.SubscriptionID = invoice.Subscription.ID
		}
	}

	return be, nil
}
