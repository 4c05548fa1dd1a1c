package domain

import "context"

// CustomerStore is the read/write contract available inside a transaction.
// All mutation goes through it: every status change is a lookup-then-patch on
// an identified record, never a blind write.
type CustomerStore interface {
	List(ctx context.Context) ([]Customer, error)
	GetByEmail(ctx context.Context, email string) (Customer, error)
	GetBySubdomain(ctx context.Context, subdomain string) (Customer, error)
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (Customer, error)

	// Create inserts a new record. A DuplicateEmailError is returned when
	// the email is already present.
	Create(ctx context.Context, customer Customer) error

	// SetProvisioned records the outcome of a successful provisioning run:
	// assigns the subdomain and moves the record to the given status.
	SetProvisioned(ctx context.Context, email, subdomain string, status Status) error

	// SetStatus patches the lifecycle status of the record with the given
	// subdomain.
	SetStatus(ctx context.Context, subdomain string, status Status) error

	// Remove deletes a provisioning placeholder that never acquired
	// infrastructure. Provisioned records are never removed.
	Remove(ctx context.Context, email string) error
}

// CustomerRepository is the persistence contract for customer records.
// The non-transactional methods are best-effort snapshot reads; Transact is
// the only mutation primitive and serializes the whole read-modify-write
// cycle against concurrent callers.
type CustomerRepository interface {
	CustomerStore

	Transact(ctx context.Context, fn func(CustomerStore) error) error
}

// Provisioner executes the external provisioning and deprovisioning
// operations and normalizes their outcome. Calls block for the duration of
// the external process and are never retried here.
type Provisioner interface {
	Provision(ctx context.Context, email, billingCustomerID, billingSubscriptionID string) (ProvisionResult, error)
	Deprovision(ctx context.Context, subdomain string) (string, error)
}

// ProvisionResult carries what a successful provisioning run reported.
type ProvisionResult struct {
	// Subdomain is the tenant identifier the external operation assigned.
	Subdomain string
	// Output is the operation's human-readable confirmation text.
	Output string
}

// EventVerifier authenticates a raw billing event payload against its
// signature header and normalizes it into a BillingEvent.
type EventVerifier interface {
	Verify(payload []byte, signature string) (BillingEvent, error)
}

// HealthProber maps a subdomain to a coarse readiness signal.
type HealthProber interface {
	Probe(ctx context.Context, subdomain string) Health
}

// TransitionValidator checks lifecycle transitions against the domain rules.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
}

// EventPublisher defines the contract for emitting lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event LifecycleEvent) error
}

// LifecycleEvent is a record of an effective transition or a failed bridge
// operation, published for audit and alerting.
type LifecycleEvent struct {
	Event          Event
	Email          string
	Subdomain      string
	SubscriptionID string
	Status         Status
	// Failure carries the bridge diagnostic when the event reports a
	// provisioning or deprovisioning failure.
	Failure string
}
