package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mpFixture struct {
	customersCreated int
	preapprovalsMade int
	customerExists   bool
	paymentStatus    string
	preapprovals     []map[string]any
}

func newMPServer(t *testing.T, fx *mpFixture) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/customers/search", func(w http.ResponseWriter, r *http.Request) {
		results := []map[string]any{}
		if fx.customerExists {
			results = append(results, map[string]any{"id": "cus_1", "email": r.URL.Query().Get("email")})
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	})

	mux.HandleFunc("POST /v1/customers", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("X-Idempotency-Key"))
		fx.customersCreated++
		fx.customerExists = true
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "cus_1"})
	})

	mux.HandleFunc("POST /preapproval", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "mp_plan_platina", body["preapproval_plan_id"])
		fx.preapprovalsMade++
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "pre_1", "init_point": "https://mp.example/init/pre_1"})
	})

	mux.HandleFunc("GET /v1/payments/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":                 555001,
			"status":             fx.paymentStatus,
			"transaction_amount": 49.90,
			"external_reference": "platina",
			"payer":              map[string]any{"id": 777, "email": "a@x.com"},
		})
	})

	mux.HandleFunc("GET /preapproval/search", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "authorized", r.URL.Query().Get("status"))
		json.NewEncoder(w).Encode(map[string]any{"results": fx.preapprovals})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newMP(baseURL string) *MercadoPago {
	return NewMercadoPago(MercadoPagoConfig{
		AccessToken:   "TEST-token",
		WebhookSecret: "whsec",
		BaseURL:       baseURL,
		PlanIDs: map[string]string{
			"estudante": "mp_plan_estudante",
			"platina":   "mp_plan_platina",
			"magistral": "mp_plan_magistral",
		},
	})
}

func signMP(body []byte) http.Header {
	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(body)
	h := http.Header{}
	h.Set("x-signature", fmt.Sprintf("ts=1700000000,v1=%s", hex.EncodeToString(mac.Sum(nil))))
	return h
}

func TestMercadoPagoCheckoutCustomerResolutionIsIdempotent(t *testing.T) {
	fx := &mpFixture{}
	srv := newMPServer(t, fx)
	mp := newMP(srv.URL)

	req := CheckoutRequest{PlanID: "platina", UserID: 1, Email: "a@x.com", SuccessURL: "https://app.example/assinatura"}

	sess, err := mp.CreateCheckout(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "https://mp.example/init/pre_1", sess.URL)

	_, err = mp.CreateCheckout(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 1, fx.customersCreated, "second checkout must reuse the customer found by email")
	assert.Equal(t, 2, fx.preapprovalsMade)
}

func TestMercadoPagoCheckoutUnmappedPlan(t *testing.T) {
	fx := &mpFixture{}
	srv := newMPServer(t, fx)
	mp := newMP(srv.URL)

	_, err := mp.CreateCheckout(context.Background(), CheckoutRequest{PlanID: "diamante", Email: "a@x.com"})
	assert.ErrorIs(t, err, ErrInvalidPlan)
}

func TestMercadoPagoWebhookApproved(t *testing.T) {
	fx := &mpFixture{paymentStatus: "approved"}
	srv := newMPServer(t, fx)
	mp := newMP(srv.URL)

	body := []byte(`{"type":"payment","action":"payment.updated","data":{"id":555001}}`)
	ev, err := mp.ParseWebhook(context.Background(), body, signMP(body))
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, ev.Status)
	assert.Equal(t, "555001", ev.TransactionID)
	assert.Equal(t, "a@x.com", ev.CustomerEmail)
	assert.Equal(t, "platina", ev.PlanID)
	assert.Equal(t, "777", ev.ProviderCustomerID)
	assert.InDelta(t, 49.90, ev.Amount, 0.001)
	require.NotNil(t, ev.PeriodEnd, "approved payments derive a period end from the plan interval")
	assert.WithinDuration(t, time.Now().AddDate(0, 1, 0), *ev.PeriodEnd, time.Minute)
}

func TestMercadoPagoWebhookRejectedPaymentIsNotApproved(t *testing.T) {
	fx := &mpFixture{paymentStatus: "rejected"}
	srv := newMPServer(t, fx)
	mp := newMP(srv.URL)

	body := []byte(`{"type":"payment","data":{"id":555001}}`)
	ev, err := mp.ParseWebhook(context.Background(), body, signMP(body))
	require.NoError(t, err)
	assert.Equal(t, StatusDeclined, ev.Status)
	assert.Nil(t, ev.PeriodEnd)
}

func TestMercadoPagoWebhookBadSignature(t *testing.T) {
	fx := &mpFixture{paymentStatus: "approved"}
	srv := newMPServer(t, fx)
	mp := newMP(srv.URL)

	body := []byte(`{"type":"payment","data":{"id":555001}}`)

	h := http.Header{}
	h.Set("x-signature", "ts=1700000000,v1=deadbeef")
	_, err := mp.ParseWebhook(context.Background(), body, h)
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = mp.ParseWebhook(context.Background(), body, http.Header{})
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestMercadoPagoWebhookNonPaymentTopicIsAcknowledged(t *testing.T) {
	fx := &mpFixture{}
	srv := newMPServer(t, fx)
	mp := newMP(srv.URL)

	body := []byte(`{"type":"plan","data":{"id":"plan_1"}}`)
	ev, err := mp.ParseWebhook(context.Background(), body, signMP(body))
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, ev.Status)
}

func TestMercadoPagoReconcile(t *testing.T) {
	t.Run("active preapproval", func(t *testing.T) {
		fx := &mpFixture{preapprovals: []map[string]any{{
			"id":                  "pre_9",
			"payer_id":            777,
			"status":              "authorized",
			"preapproval_plan_id": "mp_plan_magistral",
			"next_payment_date":   "2025-02-01T00:00:00.000-03:00",
		}}}
		srv := newMPServer(t, fx)
		mp := newMP(srv.URL)

		state, err := mp.Reconcile(context.Background(), "a@x.com")
		require.NoError(t, err)
		assert.True(t, state.Subscribed)
		assert.Equal(t, "magistral", state.Tier)
		assert.Equal(t, "777", state.CustomerID)
		require.NotNil(t, state.PeriodEnd)
		assert.Equal(t, time.Date(2025, 2, 1, 3, 0, 0, 0, time.UTC), state.PeriodEnd.UTC())
	})

	t.Run("no preapproval means not subscribed", func(t *testing.T) {
		fx := &mpFixture{}
		srv := newMPServer(t, fx)
		mp := newMP(srv.URL)

		state, err := mp.Reconcile(context.Background(), "a@x.com")
		require.NoError(t, err)
		assert.False(t, state.Subscribed)
	})

	t.Run("provider failure surfaces as an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		t.Cleanup(srv.Close)
		mp := newMP(srv.URL)

		_, err := mp.Reconcile(context.Background(), "a@x.com")
		assert.Error(t, err)
	})
}

func TestMapMercadoPagoStatus(t *testing.T) {
	cases := map[string]Status{
		"approved":     StatusApproved,
		"pending":      StatusPending,
		"in_process":   StatusPending,
		"authorized":   StatusPending,
		"rejected":     StatusDeclined,
		"cancelled":    StatusCanceled,
		"refunded":     StatusCanceled,
		"charged_back": StatusCanceled,
		"whatever":     StatusUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, mapMercadoPagoStatus(in), "status %q", in)
	}
}
