package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/neomorfeo/provisiq/internal/domain"
)

// ProvisioningService orchestrates the billing-event-driven customer
// lifecycle: verified events and admin calls are mapped to provisioning
// actions and record store transitions.
type ProvisioningService struct {
	repo      domain.CustomerRepository
	bridge    domain.Provisioner
	verifier  domain.EventVerifier
	prober    domain.HealthProber
	validator domain.TransitionValidator
	publisher domain.EventPublisher
}

// NewProvisioningService creates a service with the given adapters.
func NewProvisioningService(
	repo domain.CustomerRepository,
	bridge domain.Provisioner,
	verifier domain.EventVerifier,
	prober domain.HealthProber,
	validator domain.TransitionValidator,
	publisher domain.EventPublisher,
) *ProvisioningService {
	return &ProvisioningService{
		repo:      repo,
		bridge:    bridge,
		verifier:  verifier,
		prober:    prober,
		validator: validator,
		publisher: publisher,
	}
}

// HandleBillingEvent authenticates and applies one billing event delivery.
//
// It returns an error only when the signature is invalid; once an event is
// authenticated the delivery is acknowledged regardless of downstream
// outcome, so the billing provider never enters a redelivery storm over a
// provisioning failure. Action failures are logged and published to the
// lifecycle queue for alerting. Deliveries are at-least-once: every branch
// treats a duplicate as a no-op.
func (s *ProvisioningService) HandleBillingEvent(ctx context.Context, payload []byte, signature string) error {
	event, err := s.verifier.Verify(payload, signature)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "received billing event",
		"type", event.Type,
		"provider_type", event.ProviderType,
	)

	switch event.Type {
	case domain.BillingCheckoutCompleted:
		if event.Email == "" {
			slog.WarnContext(ctx, "checkout event without email ignored")
			return nil
		}
		if _, err := s.ProvisionCustomer(ctx, event.Email, event.BillingCustomerID, event.SubscriptionID); err != nil {
			var dupErr *domain.DuplicateEmailError
			if errors.As(err, &dupErr) {
				slog.InfoContext(ctx, "duplicate checkout delivery ignored", "email", dupErr.Email)
				return nil
			}
			slog.ErrorContext(ctx, "provisioning failed",
				"email", event.Email,
				"error", err,
			)
		}

	case domain.BillingSubscriptionDeleted:
		if err := s.deprovisionBySubscription(ctx, event.SubscriptionID); err != nil {
			slog.ErrorContext(ctx, "deprovisioning failed",
				"subscription_id", event.SubscriptionID,
				"error", err,
			)
		}

	case domain.BillingPaymentFailed:
		if err := s.markPayment(ctx, event.SubscriptionID, domain.EventPaymentFailed); err != nil {
			slog.ErrorContext(ctx, "marking payment failure",
				"subscription_id", event.SubscriptionID,
				"error", err,
			)
		}

	case domain.BillingPaymentSucceeded:
		if err := s.markPayment(ctx, event.SubscriptionID, domain.EventPaymentRecovered); err != nil {
			slog.ErrorContext(ctx, "recovering payment status",
				"subscription_id", event.SubscriptionID,
				"error", err,
			)
		}

	default:
		slog.InfoContext(ctx, "unhandled billing event ignored", "provider_type", event.ProviderType)
	}

	return nil
}

// ProvisionCustomer runs the provisioning flow for one email: reserve the
// record, invoke the external operation, record the assigned subdomain.
// A *domain.DuplicateEmailError means the email is already provisioned (or
// being provisioned) and no external operation was invoked.
func (s *ProvisioningService) ProvisionCustomer(ctx context.Context, email, billingCustomerID, billingSubscriptionID string) (string, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return "", fmt.Errorf("email required")
	}

	// Reserve the email inside the store lock. The unique insert is the
	// idempotency gate: a concurrent or redelivered checkout for the same
	// email fails here and never reaches the bridge.
	customer := domain.NewCustomer(email, billingCustomerID, billingSubscriptionID)
	if err := s.repo.Transact(ctx, func(store domain.CustomerStore) error {
		return store.Create(ctx, customer)
	}); err != nil {
		return "", err
	}

	// The bridge blocks for the duration of the external operation and must
	// not run while holding the store lock, or one slow provisioning call
	// would serialize every unrelated tenant's mutation behind it.
	result, err := s.bridge.Provision(ctx, email, billingCustomerID, billingSubscriptionID)
	if err != nil {
		// Release the reservation so the email can be retried once the
		// underlying condition clears.
		if rmErr := s.repo.Transact(ctx, func(store domain.CustomerStore) error {
			return store.Remove(ctx, email)
		}); rmErr != nil {
			slog.ErrorContext(ctx, "releasing provisioning placeholder",
				"email", email,
				"error", rmErr,
			)
		}
		s.publish(ctx, domain.LifecycleEvent{
			Event:          domain.EventProvisionFailed,
			Email:          email,
			SubscriptionID: billingSubscriptionID,
			Failure:        err.Error(),
		})
		return "", err
	}

	if err := s.repo.Transact(ctx, func(store domain.CustomerStore) error {
		return store.SetProvisioned(ctx, email, result.Subdomain, domain.StatusActive)
	}); err != nil {
		// The environment is up but the record could not take the subdomain.
		// Store and infrastructure have diverged; an operator must reconcile.
		slog.ErrorContext(ctx, "recording provisioned customer, manual reconciliation required",
			"email", email,
			"subdomain", result.Subdomain,
			"error", err,
		)
		s.publish(ctx, domain.LifecycleEvent{
			Event:          domain.EventProvisionFailed,
			Email:          email,
			Subdomain:      result.Subdomain,
			SubscriptionID: billingSubscriptionID,
			Failure:        err.Error(),
		})
		return "", fmt.Errorf("recording provisioned customer %q: %w", email, err)
	}

	s.publish(ctx, domain.LifecycleEvent{
		Event:          domain.EventProvisionComplete,
		Email:          email,
		Subdomain:      result.Subdomain,
		SubscriptionID: billingSubscriptionID,
		Status:         domain.StatusActive,
	})

	return result.Output, nil
}

// DeprovisionCustomer tears down the environment for a subdomain and marks
// the record deprovisioned. Unknown subdomains return ErrCustomerNotFound.
func (s *ProvisioningService) DeprovisionCustomer(ctx context.Context, subdomain string) (string, error) {
	customer, err := s.repo.GetBySubdomain(ctx, domain.NormalizeSubdomain(subdomain))
	if err != nil {
		return "", err
	}
	return s.deprovision(ctx, customer)
}

// ListCustomers returns a snapshot of all records.
func (s *ProvisioningService) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	return s.repo.List(ctx)
}

// Probe reports the readiness of a subdomain's environment.
func (s *ProvisioningService) Probe(ctx context.Context, subdomain string) domain.Health {
	return s.prober.Probe(ctx, subdomain)
}

// deprovisionBySubscription handles a subscription cancellation event. An
// unknown subscription id is a no-op: the record was already deprovisioned
// or never provisioned.
func (s *ProvisioningService) deprovisionBySubscription(ctx context.Context, subscriptionID string) error {
	customer, err := s.repo.GetBySubscriptionID(ctx, subscriptionID)
	if errors.Is(err, domain.ErrCustomerNotFound) {
		slog.InfoContext(ctx, "subscription deletion for unknown subscription ignored",
			"subscription_id", subscriptionID,
		)
		return nil
	}
	if err != nil {
		return err
	}

	// A record without a subdomain is a reservation whose provisioning has
	// not finished; there is no environment to tear down yet and the bridge
	// must not run with an empty target.
	if customer.Subdomain == "" {
		slog.InfoContext(ctx, "subscription deletion for unprovisioned customer ignored",
			"email", customer.Email,
			"subscription_id", subscriptionID,
		)
		return nil
	}

	if _, err := s.deprovision(ctx, customer); err != nil {
		var trErr *domain.TransitionError
		if errors.As(err, &trErr) {
			// Redelivered cancellation for an already-deprovisioned record.
			slog.InfoContext(ctx, "duplicate subscription deletion ignored",
				"subdomain", customer.Subdomain,
				"status", trErr.Current,
			)
			return nil
		}
		return err
	}
	return nil
}

// deprovision invokes teardown and records the terminal status. The
// transition is validated up front so an already-deprovisioned environment
// is never torn down twice, and re-validated inside the transaction against
// the then-current state.
func (s *ProvisioningService) deprovision(ctx context.Context, customer domain.Customer) (string, error) {
	if _, err := s.validator.Apply(ctx, customer.Status, domain.EventDeprovision); err != nil {
		return "", err
	}

	output, err := s.bridge.Deprovision(ctx, customer.Subdomain)
	if err != nil {
		s.publish(ctx, domain.LifecycleEvent{
			Event:          domain.EventDeprovisionFailed,
			Email:          customer.Email,
			Subdomain:      customer.Subdomain,
			SubscriptionID: customer.BillingSubscriptionID,
			Failure:        err.Error(),
		})
		return "", err
	}

	if err := s.repo.Transact(ctx, func(store domain.CustomerStore) error {
		current, err := store.GetBySubdomain(ctx, customer.Subdomain)
		if err != nil {
			return err
		}
		status, err := s.validator.Apply(ctx, current.Status, domain.EventDeprovision)
		if err != nil {
			return err
		}
		return store.SetStatus(ctx, customer.Subdomain, status)
	}); err != nil {
		return "", fmt.Errorf("recording deprovisioned customer %q: %w", customer.Subdomain, err)
	}

	s.publish(ctx, domain.LifecycleEvent{
		Event:          domain.EventDeprovision,
		Email:          customer.Email,
		Subdomain:      customer.Subdomain,
		SubscriptionID: customer.BillingSubscriptionID,
		Status:         domain.StatusDeprovisioned,
	})

	return output, nil
}

// markPayment applies a payment lifecycle event to the record joined by
// subscription id. Unknown subscriptions and already-applied transitions are
// no-ops, which makes redelivery harmless.
func (s *ProvisioningService) markPayment(ctx context.Context, subscriptionID string, event domain.Event) error {
	var customer domain.Customer

	err := s.repo.Transact(ctx, func(store domain.CustomerStore) error {
		var err error
		customer, err = store.GetBySubscriptionID(ctx, subscriptionID)
		if err != nil {
			return err
		}

		status, err := s.validator.Apply(ctx, customer.Status, event)
		if err != nil {
			return err
		}

		if err := store.SetStatus(ctx, customer.Subdomain, status); err != nil {
			return err
		}
		customer.Status = status
		return nil
	})

	if errors.Is(err, domain.ErrCustomerNotFound) {
		slog.InfoContext(ctx, "payment event for unknown subscription ignored",
			"subscription_id", subscriptionID,
			"event", event,
		)
		return nil
	}
	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		slog.InfoContext(ctx, "payment event already reflected, ignored",
			"subscription_id", subscriptionID,
			"event", event,
			"status", trErr.Current,
		)
		return nil
	}
	if err != nil {
		return err
	}

	if event == domain.EventPaymentFailed {
		slog.WarnContext(ctx, "payment failed for customer", "subdomain", customer.Subdomain)
	}

	s.publish(ctx, domain.LifecycleEvent{
		Event:          event,
		Email:          customer.Email,
		Subdomain:      customer.Subdomain,
		SubscriptionID: subscriptionID,
		Status:         customer.Status,
	})

	return nil
}

// publish emits a lifecycle event for audit and alerting. Publish failures
// are logged, never propagated: the state transition already happened.
func (s *ProvisioningService) publish(ctx context.Context, event domain.LifecycleEvent) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "publishing lifecycle event",
			"event", event.Event,
			"subdomain", event.Subdomain,
			"error", err,
		)
	}
}
