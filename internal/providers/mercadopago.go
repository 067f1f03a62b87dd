package providers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jusdash-backend/internal/domain/plans"

	"github.com/google/uuid"
)

// MercadoPagoConfig holds credentials and the internal-plan-id to
// preapproval-plan-id mapping.
type MercadoPagoConfig struct {
	AccessToken   string            `env:"MP_ACCESS_TOKEN"`
	WebhookSecret string            `env:"MP_WEBHOOK_SECRET"`
	PlanIDs       map[string]string `env:"MP_PLAN_MAP"`
	BaseURL       string            `env:"MP_BASE_URL" envDefault:"https://api.mercadopago.com"`
}

// MercadoPago implements Provider over Mercado Pago's REST API. There is no
// official Go SDK, so this adapter speaks HTTP directly. Webhooks are
// reference-style: the notification carries only a payment id and the
// adapter fetches the payment before normalizing it.
type MercadoPago struct {
	token         string
	webhookSecret string
	baseURL       string
	planIDByPlan  map[string]string
	planByPlanID  map[string]string
	client        *http.Client
}

func NewMercadoPago(cfg MercadoPagoConfig) *MercadoPago {
	planByPlanID := make(map[string]string, len(cfg.PlanIDs))
	for plan, id := range cfg.PlanIDs {
		planByPlanID[id] = plan
	}
	return &MercadoPago{
		token:         cfg.AccessToken,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		planIDByPlan:  cfg.PlanIDs,
		planByPlanID:  planByPlanID,
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *MercadoPago) Name() string { return "mercadopago" }

func (m *MercadoPago) doJSON(ctx context.Context, method, path string, body, out any, idempotencyKey string) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+m.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("mercadopago %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("mercadopago %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type mpCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// findOrCreateCustomer searches by email before creating, so a re-clicked
// "Assinar" button never produces a second customer record. Creation carries
// an idempotency key as an extra belt against concurrent first checkouts.
func (m *MercadoPago) findOrCreateCustomer(ctx context.Context, email string) (string, error) {
	var search struct {
		Results []mpCustomer `json:"results"`
	}
	if err := m.doJSON(ctx, http.MethodGet, "/v1/customers/search?email="+url.QueryEscape(email), nil, &search, ""); err != nil {
		return "", err
	}
	if len(search.Results) > 0 {
		return search.Results[0].ID, nil
	}

	var created mpCustomer
	payload := map[string]string{"email": email}
	if err := m.doJSON(ctx, http.MethodPost, "/v1/customers", payload, &created, uuid.NewString()); err != nil {
		return "", err
	}
	return created.ID, nil
}

func (m *MercadoPago) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	preapprovalPlanID, ok := m.planIDByPlan[req.PlanID]
	if !ok {
		return nil, ErrInvalidPlan
	}
	plan, _ := plans.ByID(req.PlanID)

	if _, err := m.findOrCreateCustomer(ctx, req.Email); err != nil {
		return nil, err
	}

	body := map[string]any{
		"preapproval_plan_id": preapprovalPlanID,
		"payer_email":         req.Email,
		"external_reference":  req.PlanID,
		"back_url":            req.SuccessURL,
	}
	if plan != nil {
		body["reason"] = "Assinatura " + plan.Name
	}

	var created struct {
		ID        string `json:"id"`
		InitPoint string `json:"init_point"`
	}
	if err := m.doJSON(ctx, http.MethodPost, "/preapproval", body, &created, uuid.NewString()); err != nil {
		return nil, err
	}
	if created.InitPoint == "" {
		return nil, ErrNoCheckoutURL
	}
	return &CheckoutSession{URL: created.InitPoint, SessionID: created.ID}, nil
}

// verifySignature checks the v1 HMAC in the x-signature header against the
// raw body. Rejects before any payload field is trusted.
func (m *MercadoPago) verifySignature(payload []byte, header http.Header) error {
	sig := header.Get("x-signature")
	if sig == "" {
		return ErrBadSignature
	}
	var v1 string
	for _, part := range strings.Split(sig, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) == 2 && kv[0] == "v1" {
			v1 = kv[1]
		}
	}
	if v1 == "" {
		return ErrBadSignature
	}

	mac := hmac.New(sha256.New, []byte(m.webhookSecret))
	mac.Write(payload)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(v1)) {
		return ErrBadSignature
	}
	return nil
}

type mpPayment struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	TransactionAmount float64 `json:"transaction_amount"`
	ExternalReference string  `json:"external_reference"`
	Payer             struct {
		ID    json.Number `json:"id"`
		Email string      `json:"email"`
	} `json:"payer"`
	Metadata map[string]any `json:"metadata"`
}

func (m *MercadoPago) ParseWebhook(ctx context.Context, payload []byte, header http.Header) (*PaymentEvent, error) {
	if err := m.verifySignature(payload, header); err != nil {
		return nil, err
	}

	// Non-payment topics carry arbitrary ids (plan slugs, invoice ids), so
	// data stays raw until the topic says it names a payment.
	var note struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &note); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if note.Type != "payment" {
		// Topics we don't act on (plan, invoice, test) get acknowledged.
		return &PaymentEvent{Provider: m.Name(), Status: StatusUnknown, Raw: append([]byte(nil), payload...)}, nil
	}

	var data struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(note.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if data.ID.String() == "" {
		return nil, fmt.Errorf("%w: notification missing data.id", ErrMalformedPayload)
	}

	// Reference-style notification: pull the payment it points at.
	var pay mpPayment
	path := "/v1/payments/" + data.ID.String()
	if err := m.doJSON(ctx, http.MethodGet, path, nil, &pay, ""); err != nil {
		return nil, err
	}

	planID := pay.ExternalReference
	if planID == "" {
		if v, ok := pay.Metadata["plan_id"].(string); ok {
			planID = v
		}
	}

	ev := &PaymentEvent{
		Provider:           m.Name(),
		TransactionID:      fmt.Sprint(pay.ID),
		Status:             mapMercadoPagoStatus(pay.Status),
		CustomerEmail:      pay.Payer.Email,
		Amount:             pay.TransactionAmount,
		PlanID:             planID,
		ProviderCustomerID: pay.Payer.ID.String(),
		Raw:                append([]byte(nil), payload...),
	}

	// Payments carry no period end; derive it from the plan interval.
	if ev.Status == StatusApproved {
		if plan, ok := plans.ByID(planID); ok {
			end := time.Now().AddDate(0, plan.IntervalMonths, 0).UTC()
			ev.PeriodEnd = &end
		}
	}
	return ev, nil
}

func (m *MercadoPago) Reconcile(ctx context.Context, email string) (*SubscriptionState, error) {
	var search struct {
		Results []struct {
			ID                string      `json:"id"`
			PayerID           json.Number `json:"payer_id"`
			Status            string      `json:"status"`
			PreapprovalPlanID string      `json:"preapproval_plan_id"`
			NextPaymentDate   string      `json:"next_payment_date"`
		} `json:"results"`
	}
	path := "/preapproval/search?status=authorized&payer_email=" + url.QueryEscape(email)
	if err := m.doJSON(ctx, http.MethodGet, path, nil, &search, ""); err != nil {
		return nil, err
	}
	if len(search.Results) == 0 {
		return &SubscriptionState{Subscribed: false}, nil
	}

	first := search.Results[0]
	state := &SubscriptionState{
		Subscribed: true,
		CustomerID: first.PayerID.String(),
		Tier:       first.PreapprovalPlanID,
	}
	if plan, ok := m.planByPlanID[first.PreapprovalPlanID]; ok {
		state.Tier = plan
	}
	if first.NextPaymentDate != "" {
		if end, err := time.Parse(time.RFC3339, first.NextPaymentDate); err == nil {
			end = end.UTC()
			state.PeriodEnd = &end
		}
	}
	return state, nil
}

func mapMercadoPagoStatus(s string) Status {
	switch s {
	case "approved":
		return StatusApproved
	case "pending", "in_process", "authorized":
		return StatusPending
	case "rejected":
		return StatusDeclined
	case "cancelled", "refunded", "charged_back":
		return StatusCanceled
	default:
		return StatusUnknown
	}
}
