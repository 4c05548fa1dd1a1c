package domain

// BillingEventType classifies an inbound billing provider notification after
// signature verification. The set is closed on our side; provider event types
// outside it map to BillingUnknown and are acknowledged without processing.
type BillingEventType string

const (
	BillingCheckoutCompleted   BillingEventType = "checkout_completed"
	BillingSubscriptionDeleted BillingEventType = "subscription_deleted"
	BillingPaymentFailed       BillingEventType = "invoice_payment_failed"
	BillingPaymentSucceeded    BillingEventType = "invoice_payment_succeeded"
	BillingUnknown             BillingEventType = "unknown"
)

// BillingEvent is a verified, normalized billing notification. Delivery is
// at-least-once and only ordered per subscription, so every event must be
// treated as possibly duplicated and possibly stale.
type BillingEvent struct {
	Type BillingEventType

	// ProviderType is the raw provider event name, kept for logging
	// unknown or unexpected types.
	ProviderType string

	// Email and billing references are populated for checkout events.
	Email             string
	BillingCustomerID string

	// SubscriptionID is the join key for subscription lifecycle events.
	SubscriptionID string
}

// Health is the coarse readiness signal for one customer environment.
type Health struct {
	Ready  bool
	Status string
}
