package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Provider is the capability set implemented once per payment provider.
// It hides provider-specific field names, auth schemes and status
// vocabularies behind one normalized request/response shape; everything
// the application knows about money goes through these three operations.
type Provider interface {
	Name() string

	// CreateCheckout resolves (find-or-create, keyed by email) the
	// provider-side customer and opens a hosted checkout session for the
	// requested plan. It never touches local state.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// ParseWebhook verifies and normalizes a provider-initiated callback.
	// It must reject unsigned or malformed payloads before anything else
	// reads the event.
	ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*PaymentEvent, error)

	// Reconcile asks the provider directly for the customer's current
	// subscription state. "No such customer" and "no active subscription"
	// are successful Subscribed=false answers; an error means the provider
	// could not be asked and the caller must not downgrade anyone.
	Reconcile(ctx context.Context, email string) (*SubscriptionState, error)
}

// PortalProvider is implemented by adapters whose provider can mint a hosted
// customer-portal link for managing the subscription.
type PortalProvider interface {
	CreatePortal(ctx context.Context, email, returnURL string) (string, error)
}

// CheckoutRequest carries everything an adapter needs to open a session.
type CheckoutRequest struct {
	PlanID     string
	UserID     uint
	Email      string
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the provider-hosted payment flow handed to the client.
type CheckoutSession struct {
	URL       string
	SessionID string
}

// Status is the normalized transaction outcome vocabulary. Only
// StatusApproved ever grants entitlement; everything else is acknowledged
// and ignored.
type Status string

const (
	StatusApproved Status = "approved"
	StatusPending  Status = "pending"
	StatusDeclined Status = "declined"
	StatusCanceled Status = "canceled"
	StatusUnknown  Status = "unknown"
)

// PaymentEvent is a webhook payload normalized at the adapter boundary,
// before any shared logic runs.
type PaymentEvent struct {
	Provider           string
	TransactionID      string
	Status             Status
	CustomerEmail      string
	Amount             float64
	PlanID             string
	ProviderCustomerID string
	PeriodEnd          *time.Time
	Raw                json.RawMessage
}

// SubscriptionState is a provider's ground-truth answer to "is this
// customer subscribed right now".
type SubscriptionState struct {
	Subscribed bool
	Tier       string
	CustomerID string
	PeriodEnd  *time.Time
}

var (
	ErrUnknownProvider   = errors.New("unknown payment provider")
	ErrInvalidPlan       = errors.New("plan is not mapped for this provider")
	ErrMalformedPayload  = errors.New("malformed webhook payload")
	ErrBadSignature      = errors.New("webhook signature verification failed")
	ErrNoCheckoutURL     = errors.New("no checkout URL returned from provider")
	ErrPortalUnsupported = errors.New("provider has no customer portal")
)
