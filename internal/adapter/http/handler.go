package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/provisiq/internal/app"
	"github.com/neomorfeo/provisiq/internal/domain"
)

// CheckoutStarter creates hosted checkout sessions with the billing provider.
type CheckoutStarter interface {
	Start(ctx context.Context) (string, error)
}

// CustomerResponse is the API representation of a customer record.
type CustomerResponse struct {
	Email                 string `json:"email" doc:"Customer email"`
	Subdomain             string `json:"subdomain,omitempty" doc:"Assigned subdomain, empty while provisioning"`
	BillingCustomerID     string `json:"billing_customer_id,omitempty" doc:"Billing provider customer ID"`
	BillingSubscriptionID string `json:"billing_subscription_id,omitempty" doc:"Billing provider subscription ID"`
	Status                string `json:"status" doc:"Lifecycle state"`
	CreatedAt             string `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt             string `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toCustomerResponse(c domain.Customer) CustomerResponse {
	return CustomerResponse{
		Email:                 c.Email,
		Subdomain:             c.Subdomain,
		BillingCustomerID:     c.BillingCustomerID,
		BillingSubscriptionID: c.BillingSubscriptionID,
		Status:                string(c.Status),
		CreatedAt:             c.CreatedAt.Format("2006-01-02T15:04:05Z"),
		UpdatedAt:             c.UpdatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// --- Billing webhook ---

type WebhookInput struct {
	Signature string `header:"Stripe-Signature" doc:"Webhook signature header"`
	RawBody   []byte
}

type WebhookOutput struct {
	Body struct {
		Received bool `json:"received" doc:"Delivery acknowledged"`
	}
}

// --- Environment status ---

type StatusInput struct {
	Subdomain string `path:"subdomain" doc:"Customer subdomain"`
}

type StatusOutput struct {
	Body struct {
		Subdomain string `json:"subdomain" doc:"Probed subdomain"`
		Ready     bool   `json:"ready" doc:"Environment is serving traffic"`
		Status    string `json:"status" doc:"Raw health state"`
	}
}

// --- Admin: list ---

type ListCustomersOutput struct {
	Body []CustomerResponse
}

// --- Admin: provision ---

type ProvisionInput struct {
	Body struct {
		Email string `json:"email" minLength:"3" maxLength:"255" format:"email" doc:"Customer email"`
	}
}

type ProvisionOutput struct {
	Body struct {
		Message string `json:"message" doc:"Provisioning script output"`
	}
}

// --- Admin: deprovision ---

type DeprovisionInput struct {
	Body struct {
		Subdomain string `json:"subdomain" minLength:"1" maxLength:"100" doc:"Customer subdomain"`
	}
}

type DeprovisionOutput struct {
	Body struct {
		Message string `json:"message" doc:"Teardown script output"`
	}
}

// --- Checkout ---

type CheckoutOutput struct {
	Status   int
	Location string `header:"Location" doc:"Hosted checkout URL"`
}

// Register adds all routes to the Huma API. Admin operations require the
// configured API key; passing an empty key leaves the admin surface disabled
// rather than open.
func Register(api huma.API, svc *app.ProvisioningService, checkout CheckoutStarter, adminKey string) {
	adminAuth := AdminAuth(api, adminKey)

	huma.Register(api, huma.Operation{
		OperationID: "billing-webhook",
		Method:      http.MethodPost,
		Path:        "/webhook",
		Summary:     "Receive a billing provider event",
		Tags:        []string{"Billing"},
	}, func(ctx context.Context, input *WebhookInput) (*WebhookOutput, error) {
		if err := svc.HandleBillingEvent(ctx, input.RawBody, input.Signature); err != nil {
			return nil, toHumaError(err)
		}
		out := &WebhookOutput{}
		out.Body.Received = true
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "environment-status",
		Method:      http.MethodGet,
		Path:        "/api/status/{subdomain}",
		Summary:     "Probe a customer environment",
		Tags:        []string{"Status"},
	}, func(ctx context.Context, input *StatusInput) (*StatusOutput, error) {
		health := svc.Probe(ctx, input.Subdomain)
		out := &StatusOutput{}
		out.Body.Subdomain = input.Subdomain
		out.Body.Ready = health.Ready
		out.Body.Status = health.Status
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-checkout-session",
		Method:      http.MethodPost,
		Path:        "/api/create-checkout-session",
		Summary:     "Start a hosted checkout session",
		Tags:        []string{"Billing"},
	}, func(ctx context.Context, _ *struct{}) (*CheckoutOutput, error) {
		url, err := checkout.Start(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CheckoutOutput{Status: http.StatusSeeOther, Location: url}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-customers",
		Method:      http.MethodGet,
		Path:        "/admin/customers",
		Summary:     "List all customer records",
		Tags:        []string{"Admin"},
		Middlewares: huma.Middlewares{adminAuth},
	}, func(ctx context.Context, _ *struct{}) (*ListCustomersOutput, error) {
		customers, err := svc.ListCustomers(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]CustomerResponse, len(customers))
		for i, c := range customers {
			resp[i] = toCustomerResponse(c)
		}
		return &ListCustomersOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "provision-customer",
		Method:      http.MethodPost,
		Path:        "/admin/provision",
		Summary:     "Provision an environment manually",
		Tags:        []string{"Admin"},
		Middlewares: huma.Middlewares{adminAuth},
	}, func(ctx context.Context, input *ProvisionInput) (*ProvisionOutput, error) {
		output, err := svc.ProvisionCustomer(ctx, input.Body.Email, "", "")
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &ProvisionOutput{}
		out.Body.Message = output
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "deprovision-customer",
		Method:      http.MethodPost,
		Path:        "/admin/deprovision",
		Summary:     "Tear down an environment manually",
		Tags:        []string{"Admin"},
		Middlewares: huma.Middlewares{adminAuth},
	}, func(ctx context.Context, input *DeprovisionInput) (*DeprovisionOutput, error) {
		output, err := svc.DeprovisionCustomer(ctx, input.Body.Subdomain)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &DeprovisionOutput{}
		out.Body.Message = output
		return out, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrInvalidSignature) {
		return huma.Error400BadRequest("invalid webhook signature")
	}

	if errors.Is(err, domain.ErrCustomerNotFound) {
		return huma.Error404NotFound("customer not found")
	}

	var dupErr *domain.DuplicateEmailError
	if errors.As(err, &dupErr) {
		return huma.Error409Conflict(dupErr.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	var cmdErr *domain.CommandError
	if errors.As(err, &cmdErr) {
		return huma.Error502BadGateway(cmdErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
