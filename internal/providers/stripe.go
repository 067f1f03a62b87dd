package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"jusdash-backend/internal/domain/plans"

	"github.com/stripe/stripe-go/v75"
	portalsession "github.com/stripe/stripe-go/v75/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v75/checkout/session"
	"github.com/stripe/stripe-go/v75/customer"
	"github.com/stripe/stripe-go/v75/subscription"
	"github.com/stripe/stripe-go/v75/webhook"
)

// StripeConfig holds the Stripe credentials and the internal-plan-id to
// price-id mapping.
type StripeConfig struct {
	SecretKey     string            `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string            `env:"STRIPE_WEBHOOK_SECRET"`
	PriceIDs      map[string]string `env:"STRIPE_PRICE_MAP"`
}

// Stripe implements Provider on top of stripe-go. The SDK works through a
// package-global API key, so the constructor sets it once.
type Stripe struct {
	webhookSecret string
	priceByPlan   map[string]string
	planByPrice   map[string]string
}

func NewStripe(cfg StripeConfig) *Stripe {
	stripe.Key = cfg.SecretKey

	planByPrice := make(map[string]string, len(cfg.PriceIDs))
	for plan, price := range cfg.PriceIDs {
		planByPrice[price] = plan
	}
	return &Stripe{
		webhookSecret: cfg.WebhookSecret,
		priceByPlan:   cfg.PriceIDs,
		planByPrice:   planByPrice,
	}
}

func (s *Stripe) Name() string { return "stripe" }

// findOrCreateCustomer looks the customer up by email first so repeated
// checkout attempts never mint duplicate customer records.
func (s *Stripe) findOrCreateCustomer(req CheckoutRequest) (*stripe.Customer, error) {
	it := customer.List(&stripe.CustomerListParams{Email: stripe.String(req.Email)})
	for it.Next() {
		return it.Customer(), nil
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("stripe customer lookup: %w", err)
	}

	cus, err := customer.New(&stripe.CustomerParams{
		Email: stripe.String(req.Email),
		Metadata: map[string]string{
			"user_id": fmt.Sprint(req.UserID),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("stripe customer create: %w", err)
	}
	return cus, nil
}

func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	priceID, ok := s.priceByPlan[req.PlanID]
	if !ok {
		return nil, ErrInvalidPlan
	}

	cus, err := s.findOrCreateCustomer(req)
	if err != nil {
		return nil, err
	}

	params := &stripe.CheckoutSessionParams{
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(cus.ID),

		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},

		ClientReferenceID: stripe.String(fmt.Sprint(req.UserID)),

		Metadata: map[string]string{
			"user_id": fmt.Sprint(req.UserID),
			"plan_id": req.PlanID,
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"user_id": fmt.Sprint(req.UserID),
				"plan_id": req.PlanID,
			},
		},
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe checkout session: %w", err)
	}
	if sess.URL == "" {
		return nil, ErrNoCheckoutURL
	}
	return &CheckoutSession{URL: sess.URL, SessionID: sess.ID}, nil
}

func (s *Stripe) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*PaymentEvent, error) {
	event, err := webhook.ConstructEventWithOptions(
		payload,
		header.Get("Stripe-Signature"),
		s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return s.eventFromSession(&sess, event.Data.Raw)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		return &PaymentEvent{
			Provider:      s.Name(),
			TransactionID: sub.ID,
			Status:        StatusCanceled,
			Raw:           append([]byte(nil), event.Data.Raw...),
		}, nil

	default:
		// Acknowledge everything else; not-yet-actionable is not an error.
		return &PaymentEvent{Provider: s.Name(), Status: StatusUnknown, Raw: append([]byte(nil), event.Data.Raw...)}, nil
	}
}

func (s *Stripe) eventFromSession(sess *stripe.CheckoutSession, raw []byte) (*PaymentEvent, error) {
	ev := &PaymentEvent{
		Provider:      s.Name(),
		TransactionID: sess.ID,
		Status:        StatusPending,
		Amount:        float64(sess.AmountTotal) / 100.0,
		PlanID:        sess.Metadata["plan_id"],
		Raw:           append([]byte(nil), raw...),
	}
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		ev.Status = StatusApproved
	}
	if sess.CustomerDetails != nil {
		ev.CustomerEmail = sess.CustomerDetails.Email
	}
	if sess.Customer != nil {
		ev.ProviderCustomerID = sess.Customer.ID
	}

	if ev.Status != StatusApproved {
		return ev, nil
	}

	// The session payload carries no period end; fetch the subscription the
	// session created. A failure here must bubble up so Stripe redelivers.
	if sess.Subscription != nil && sess.Subscription.ID != "" {
		sub, err := subscription.Get(sess.Subscription.ID, nil)
		if err != nil {
			return nil, fmt.Errorf("stripe subscription fetch: %w", err)
		}
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		ev.PeriodEnd = &end
		if ev.PlanID == "" && sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			ev.PlanID = s.planForPrice(sub.Items.Data[0].Price.ID)
		}
	} else if p, ok := plans.ByID(ev.PlanID); ok {
		end := time.Now().AddDate(0, p.IntervalMonths, 0).UTC()
		ev.PeriodEnd = &end
	}
	return ev, nil
}

func (s *Stripe) Reconcile(ctx context.Context, email string) (*SubscriptionState, error) {
	it := customer.List(&stripe.CustomerListParams{Email: stripe.String(email)})
	var cus *stripe.Customer
	for it.Next() {
		cus = it.Customer()
		break
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("stripe customer lookup: %w", err)
	}
	if cus == nil {
		// Never transacted through Stripe: definitionally not subscribed here.
		return &SubscriptionState{Subscribed: false}, nil
	}

	subs := subscription.List(&stripe.SubscriptionListParams{
		Customer: stripe.String(cus.ID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	})
	state := &SubscriptionState{Subscribed: false, CustomerID: cus.ID}
	for subs.Next() {
		sub := subs.Subscription()
		end := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		// Earliest active period end wins as the displayed expiry.
		if state.PeriodEnd == nil || end.Before(*state.PeriodEnd) {
			state.Subscribed = true
			state.PeriodEnd = &end
			if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
				state.Tier = s.planForPrice(sub.Items.Data[0].Price.ID)
			}
		}
	}
	if err := subs.Err(); err != nil {
		return nil, fmt.Errorf("stripe subscription list: %w", err)
	}
	return state, nil
}

// CreatePortal implements PortalProvider via Stripe's billing portal.
func (s *Stripe) CreatePortal(ctx context.Context, email, returnURL string) (string, error) {
	it := customer.List(&stripe.CustomerListParams{Email: stripe.String(email)})
	var cus *stripe.Customer
	for it.Next() {
		cus = it.Customer()
		break
	}
	if err := it.Err(); err != nil {
		return "", fmt.Errorf("stripe customer lookup: %w", err)
	}
	if cus == nil {
		return "", fmt.Errorf("no stripe customer for %s", email)
	}

	portal, err := portalsession.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(cus.ID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", fmt.Errorf("stripe billing portal: %w", err)
	}
	return portal.URL, nil
}

// planForPrice maps a Stripe price id back to the internal plan id. Unmapped
// prices keep the raw id so the grant still lands with something displayable.
func (s *Stripe) planForPrice(priceID string) string {
	if plan, ok := s.planByPrice[priceID]; ok {
		return plan
	}
	return priceID
}
