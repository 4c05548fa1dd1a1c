package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/neomorfeo/provisiq/internal/domain"
)

const tracerName = "github.com/neomorfeo/provisiq/internal/adapter/otel"

// TracingRepository wraps a domain.CustomerRepository with OpenTelemetry
// tracing. Each method creates a span with semantic attributes and records
// errors. Transact produces one span covering the whole locked section, so
// lock hold time is directly visible in traces.
type TracingRepository struct {
	next   domain.CustomerRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements domain.CustomerRepository.
var _ domain.CustomerRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.CustomerRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) Transact(ctx context.Context, fn func(domain.CustomerStore) error) error {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.Transact")
	defer span.End()

	err := r.next.Transact(ctx, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TracingRepository) List(ctx context.Context) ([]domain.Customer, error) {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.List")
	defer span.End()

	customers, err := r.next.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetAttributes(attribute.Int("result.count", len(customers)))
	}
	return customers, err
}

func (r *TracingRepository) GetByEmail(ctx context.Context, email string) (domain.Customer, error) {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.GetByEmail",
		trace.WithAttributes(attribute.String("customer.email", email)),
	)
	defer span.End()

	customer, err := r.next.GetByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return customer, err
}

func (r *TracingRepository) GetBySubdomain(ctx context.Context, subdomain string) (domain.Customer, error) {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.GetBySubdomain",
		trace.WithAttributes(attribute.String("customer.subdomain", subdomain)),
	)
	defer span.End()

	customer, err := r.next.GetBySubdomain(ctx, subdomain)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return customer, err
}

func (r *TracingRepository) GetBySubscriptionID(ctx context.Context, id string) (domain.Customer, error) {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.GetBySubscriptionID",
		trace.WithAttributes(attribute.String("customer.subscription_id", id)),
	)
	defer span.End()

	customer, err := r.next.GetBySubscriptionID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return customer, err
}

func (r *TracingRepository) Create(ctx context.Context, customer domain.Customer) error {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.Create",
		trace.WithAttributes(
			attribute.String("customer.email", customer.Email),
			attribute.String("customer.status", string(customer.Status)),
		),
	)
	defer span.End()

	err := r.next.Create(ctx, customer)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TracingRepository) SetProvisioned(ctx context.Context, email, subdomain string, status domain.Status) error {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.SetProvisioned",
		trace.WithAttributes(
			attribute.String("customer.email", email),
			attribute.String("customer.subdomain", subdomain),
			attribute.String("customer.status", string(status)),
		),
	)
	defer span.End()

	err := r.next.SetProvisioned(ctx, email, subdomain, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TracingRepository) SetStatus(ctx context.Context, subdomain string, status domain.Status) error {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.SetStatus",
		trace.WithAttributes(
			attribute.String("customer.subdomain", subdomain),
			attribute.String("customer.status", string(status)),
		),
	)
	defer span.End()

	err := r.next.SetStatus(ctx, subdomain, status)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TracingRepository) Remove(ctx context.Context, email string) error {
	ctx, span := r.tracer.Start(ctx, "CustomerRepository.Remove",
		trace.WithAttributes(attribute.String("customer.email", email)),
	)
	defer span.End()

	err := r.next.Remove(ctx, email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
