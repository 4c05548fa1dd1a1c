package domain

import (
	"strings"
	"time"
)

// Status represents the lifecycle state of a customer environment.
type Status string

const (
	StatusProvisioning  Status = "provisioning"
	StatusActive        Status = "active"
	StatusPaymentFailed Status = "payment_failed"
	StatusDeprovisioned Status = "deprovisioned"
)

// Event represents an action that triggers a state transition.
type Event string

const (
	EventProvisionComplete Event = "provision_complete"
	EventPaymentFailed     Event = "payment_failed"
	EventPaymentRecovered  Event = "payment_recovered"
	EventDeprovision       Event = "deprovision"

	// Failure events tag published alerts for bridge operations that
	// reported an error. They are not state transitions.
	EventProvisionFailed   Event = "provision_failed"
	EventDeprovisionFailed Event = "deprovision_failed"
)

// Transition defines a valid state change: an event moves a customer from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid state changes in the customer lifecycle.
// "deprovisioned" is terminal: no event leads out of it.
// This is domain knowledge consumed by the FSM adapter.
var Transitions = []Transition{
	{Event: EventProvisionComplete, Src: StatusProvisioning, Dst: StatusActive},
	{Event: EventPaymentFailed, Src: StatusActive, Dst: StatusPaymentFailed},
	{Event: EventPaymentRecovered, Src: StatusPaymentFailed, Dst: StatusActive},
	{Event: EventDeprovision, Src: StatusProvisioning, Dst: StatusDeprovisioned},
	{Event: EventDeprovision, Src: StatusActive, Dst: StatusDeprovisioned},
	{Event: EventDeprovision, Src: StatusPaymentFailed, Dst: StatusDeprovisioned},
}

// Customer is the core domain entity: one paying customer's environment,
// identified by subdomain once the provisioning operation has assigned one.
type Customer struct {
	Email                 string
	Subdomain             string // empty until provisioning assigns it, immutable after
	BillingCustomerID     string
	BillingSubscriptionID string
	Status                Status
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// NewCustomer creates a customer in the initial "provisioning" state.
// The subdomain is assigned later by the provisioning operation.
func NewCustomer(email, billingCustomerID, billingSubscriptionID string) Customer {
	now := time.Now().UTC()
	return Customer{
		Email:                 NormalizeEmail(email),
		BillingCustomerID:     billingCustomerID,
		BillingSubscriptionID: billingSubscriptionID,
		Status:                StatusProvisioning,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// NormalizeEmail lowercases and trims an email so lookups and the uniqueness
// constraint see one canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeSubdomain lowercases and trims a subdomain so operator-supplied
// values match the stored form.
func NormalizeSubdomain(subdomain string) string {
	return strings.ToLower(strings.TrimSpace(subdomain))
}
