package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/neomorfeo/provisiq/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// LifecycleJobArgs carries one lifecycle event through the job queue. River
// serializes this as JSON into its job table, so each record is a durable
// audit entry as well as work for the alerting worker. It snapshots the
// customer fields at publish time and the worker never touches the store.
type LifecycleJobArgs struct {
	Event          string `json:"event"`
	Email          string `json:"email"`
	Subdomain      string `json:"subdomain,omitempty"`
	SubscriptionID string `json:"subscription_id,omitempty"`
	Status         string `json:"status,omitempty"`
	Failure        string `json:"failure,omitempty"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (LifecycleJobArgs) Kind() string { return "lifecycle.recorded" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a lifecycle event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.LifecycleEvent) error {
	_, err := p.client.Insert(ctx, LifecycleJobArgs{
		Event:          string(event.Event),
		Email:          event.Email,
		Subdomain:      event.Subdomain,
		SubscriptionID: event.SubscriptionID,
		Status:         string(event.Status),
		Failure:        event.Failure,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing lifecycle job: %w", err)
	}
	return nil
}
