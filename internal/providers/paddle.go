package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"jusdash-backend/internal/domain/plans"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds credentials and the internal-plan-id to price-id
// mapping for Paddle.
type PaddleConfig struct {
	APIKey        string            `env:"PADDLE_API_KEY"`
	WebhookSecret string            `env:"PADDLE_WEBHOOK_SECRET"`
	Environment   string            `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
	PriceIDs      map[string]string `env:"PADDLE_PRICE_MAP"`
}

// Paddle implements Provider on the official SDK.
type Paddle struct {
	client      *paddle.SDK
	verifier    *paddle.WebhookVerifier
	priceByPlan map[string]string
	planByPrice map[string]string
}

func NewPaddle(cfg PaddleConfig) (*Paddle, error) {
	var client *paddle.SDK
	var err error
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("invalid paddle environment: %s", cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("paddle client: %w", err)
	}

	planByPrice := make(map[string]string, len(cfg.PriceIDs))
	for plan, price := range cfg.PriceIDs {
		planByPrice[price] = plan
	}
	return &Paddle{
		client:      client,
		verifier:    paddle.NewWebhookVerifier(cfg.WebhookSecret),
		priceByPlan: cfg.PriceIDs,
		planByPrice: planByPrice,
	}, nil
}

func (p *Paddle) Name() string { return "paddle" }

func (p *Paddle) findCustomer(ctx context.Context, email string) (*paddle.Customer, error) {
	res, err := p.client.CustomersClient.ListCustomers(ctx, &paddle.ListCustomersRequest{
		Email: []string{email},
	})
	if err != nil {
		return nil, fmt.Errorf("paddle customer lookup: %w", err)
	}
	var found *paddle.Customer
	err = res.Iter(ctx, func(c *paddle.Customer) (bool, error) {
		found = c
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("paddle customer lookup: %w", err)
	}
	return found, nil
}

func (p *Paddle) findOrCreateCustomer(ctx context.Context, email string) (*paddle.Customer, error) {
	if cus, err := p.findCustomer(ctx, email); err != nil || cus != nil {
		return cus, err
	}
	cus, err := p.client.CustomersClient.CreateCustomer(ctx, &paddle.CreateCustomerRequest{
		Email: email,
	})
	if err != nil {
		return nil, fmt.Errorf("paddle customer create: %w", err)
	}
	return cus, nil
}

func (p *Paddle) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	priceID, ok := p.priceByPlan[req.PlanID]
	if !ok {
		return nil, ErrInvalidPlan
	}

	cus, err := p.findOrCreateCustomer(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  priceID,
		Quantity: 1,
	})
	txReq := &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomerID: paddle.PtrTo(cus.ID),
		CustomData: paddle.CustomData{
			"user_id": fmt.Sprint(req.UserID),
			"plan_id": req.PlanID,
			"email":   req.Email,
		},
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(req.SuccessURL)}
	}

	tx, err := p.client.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return nil, fmt.Errorf("paddle transaction: %w", err)
	}
	if tx.Checkout == nil || tx.Checkout.URL == nil || *tx.Checkout.URL == "" {
		return nil, ErrNoCheckoutURL
	}
	return &CheckoutSession{URL: *tx.Checkout.URL, SessionID: tx.ID}, nil
}

func (p *Paddle) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*PaymentEvent, error) {
	// The verifier wants an *http.Request; rebuild one around the raw body.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Paddle-Signature", header.Get("Paddle-Signature"))

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !valid {
		return nil, ErrBadSignature
	}

	var hook struct {
		EventType string         `json:"event_type"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &hook); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	ev := &PaymentEvent{Provider: p.Name(), Status: StatusUnknown, Raw: append([]byte(nil), payload...)}
	if hook.EventType != "transaction.completed" {
		// Everything else (created, updated, payment_failed, subscription.*)
		// is acknowledged without touching entitlement; the reconciler picks
		// up status transitions on the next pull.
		return ev, nil
	}

	ev.Status = StatusApproved
	if id, ok := hook.Data["id"].(string); ok {
		ev.TransactionID = id
	}
	if cid, ok := hook.Data["customer_id"].(string); ok {
		ev.ProviderCustomerID = cid
	}
	if custom, ok := hook.Data["custom_data"].(map[string]any); ok {
		if email, ok := custom["email"].(string); ok {
			ev.CustomerEmail = email
		}
		if planID, ok := custom["plan_id"].(string); ok {
			ev.PlanID = planID
		}
	}
	if ev.PlanID == "" {
		if items, ok := hook.Data["items"].([]any); ok && len(items) > 0 {
			if item, ok := items[0].(map[string]any); ok {
				if price, ok := item["price"].(map[string]any); ok {
					if priceID, ok := price["id"].(string); ok {
						ev.PlanID = p.planForPrice(priceID)
					}
				}
			}
		}
	}
	if details, ok := hook.Data["details"].(map[string]any); ok {
		if totals, ok := details["totals"].(map[string]any); ok {
			if total, ok := totals["total"].(string); ok {
				if cents, err := strconv.ParseInt(total, 10, 64); err == nil {
					ev.Amount = float64(cents) / 100.0
				}
			}
		}
	}
	if period, ok := hook.Data["billing_period"].(map[string]any); ok {
		if endsAt, ok := period["ends_at"].(string); ok {
			if end, err := time.Parse(time.RFC3339, endsAt); err == nil {
				end = end.UTC()
				ev.PeriodEnd = &end
			}
		}
	}
	if ev.PeriodEnd == nil {
		if plan, ok := plans.ByID(ev.PlanID); ok {
			end := time.Now().AddDate(0, plan.IntervalMonths, 0).UTC()
			ev.PeriodEnd = &end
		}
	}
	return ev, nil
}

func (p *Paddle) Reconcile(ctx context.Context, email string) (*SubscriptionState, error) {
	cus, err := p.findCustomer(ctx, email)
	if err != nil {
		return nil, err
	}
	if cus == nil {
		return &SubscriptionState{Subscribed: false}, nil
	}

	res, err := p.client.SubscriptionsClient.ListSubscriptions(ctx, &paddle.ListSubscriptionsRequest{
		CustomerID: []string{cus.ID},
		Status:     []string{string(paddle.SubscriptionStatusActive)},
	})
	if err != nil {
		return nil, fmt.Errorf("paddle subscription list: %w", err)
	}

	state := &SubscriptionState{Subscribed: false, CustomerID: cus.ID}
	err = res.Iter(ctx, func(sub *paddle.Subscription) (bool, error) {
		state.Subscribed = true
		if len(sub.Items) > 0 {
			state.Tier = p.planForPrice(sub.Items[0].Price.ID)
		}
		if sub.CurrentBillingPeriod != nil {
			if end, perr := time.Parse(time.RFC3339, sub.CurrentBillingPeriod.EndsAt); perr == nil {
				end = end.UTC()
				state.PeriodEnd = &end
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, fmt.Errorf("paddle subscription list: %w", err)
	}
	return state, nil
}

// CreatePortal implements PortalProvider via Paddle's customer portal.
func (p *Paddle) CreatePortal(ctx context.Context, email, returnURL string) (string, error) {
	cus, err := p.findCustomer(ctx, email)
	if err != nil {
		return "", err
	}
	if cus == nil {
		return "", fmt.Errorf("no paddle customer for %s", email)
	}

	sess, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, &paddle.CreateCustomerPortalSessionRequest{
		CustomerID: cus.ID,
	})
	if err != nil {
		return "", fmt.Errorf("paddle customer portal: %w", err)
	}
	if sess.URLs.General.Overview == "" {
		return "", fmt.Errorf("no portal URL returned from paddle")
	}
	return sess.URLs.General.Overview, nil
}

func (p *Paddle) planForPrice(priceID string) string {
	if plan, ok := p.planByPrice[priceID]; ok {
		return plan
	}
	return priceID
}
