package providers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPaddleAdapter(t *testing.T) *Paddle {
	t.Helper()
	p, err := NewPaddle(PaddleConfig{
		APIKey:        "pdl_test_apikey",
		WebhookSecret: "pdl_ntf_secret",
		Environment:   "sandbox",
		PriceIDs: map[string]string{
			"estudante": "pri_est",
			"platina":   "pri_pla",
			"magistral": "pri_mag",
		},
	})
	require.NoError(t, err)
	return p
}

// signPaddle builds a Paddle-Signature header over the payload the way
// paddle signs deliveries: h1 = HMAC-SHA256(secret, "<ts>:<payload>").
func signPaddle(payload []byte, secret string) http.Header {
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d:%s", ts, payload)

	h := http.Header{}
	h.Set("Paddle-Signature", fmt.Sprintf("ts=%d;h1=%s", ts, hex.EncodeToString(mac.Sum(nil))))
	return h
}

func TestPaddleWebhookTransactionCompleted(t *testing.T) {
	p := newPaddleAdapter(t)

	payload := []byte(`{
		"event_type": "transaction.completed",
		"data": {
			"id": "txn_1",
			"customer_id": "ctm_1",
			"custom_data": {"email": "a@x.com", "plan_id": "platina"},
			"items": [{"price": {"id": "pri_pla"}}],
			"details": {"totals": {"total": "4990"}},
			"billing_period": {"starts_at": "2024-12-01T00:00:00Z", "ends_at": "2025-01-01T00:00:00Z"}
		}
	}`)

	ev, err := p.ParseWebhook(context.Background(), payload, signPaddle(payload, "pdl_ntf_secret"))
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, ev.Status)
	assert.Equal(t, "txn_1", ev.TransactionID)
	assert.Equal(t, "ctm_1", ev.ProviderCustomerID)
	assert.Equal(t, "a@x.com", ev.CustomerEmail)
	assert.Equal(t, "platina", ev.PlanID)
	assert.InDelta(t, 49.90, ev.Amount, 0.001)
	require.NotNil(t, ev.PeriodEnd)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), ev.PeriodEnd.UTC())
}

func TestPaddleWebhookPlanFromPriceWhenCustomDataMissing(t *testing.T) {
	p := newPaddleAdapter(t)

	payload := []byte(`{
		"event_type": "transaction.completed",
		"data": {
			"id": "txn_2",
			"customer_id": "ctm_1",
			"items": [{"price": {"id": "pri_mag"}}]
		}
	}`)

	ev, err := p.ParseWebhook(context.Background(), payload, signPaddle(payload, "pdl_ntf_secret"))
	require.NoError(t, err)
	assert.Equal(t, "magistral", ev.PlanID)
	// No billing period in the payload: the period end falls back to one
	// plan interval.
	require.NotNil(t, ev.PeriodEnd)
	assert.WithinDuration(t, time.Now().AddDate(0, 1, 0), *ev.PeriodEnd, time.Minute)
}

func TestPaddleWebhookOtherEventsAreAcknowledged(t *testing.T) {
	p := newPaddleAdapter(t)

	for _, eventType := range []string{"transaction.created", "subscription.updated", "subscription.canceled"} {
		payload := []byte(fmt.Sprintf(`{"event_type": %q, "data": {"id": "x_1"}}`, eventType))
		ev, err := p.ParseWebhook(context.Background(), payload, signPaddle(payload, "pdl_ntf_secret"))
		require.NoError(t, err, eventType)
		assert.Equal(t, StatusUnknown, ev.Status, eventType)
	}
}

func TestPaddleWebhookBadSignature(t *testing.T) {
	p := newPaddleAdapter(t)
	payload := []byte(`{"event_type": "transaction.completed", "data": {"id": "txn_1"}}`)

	_, err := p.ParseWebhook(context.Background(), payload, signPaddle(payload, "wrong_secret"))
	assert.ErrorIs(t, err, ErrBadSignature)

	_, err = p.ParseWebhook(context.Background(), payload, http.Header{})
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestPaddleInvalidEnvironment(t *testing.T) {
	_, err := NewPaddle(PaddleConfig{APIKey: "pdl_test_apikey", Environment: "staging"})
	assert.Error(t, err)
}
