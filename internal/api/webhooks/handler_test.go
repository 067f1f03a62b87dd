package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jusdash-backend/database"
	"jusdash-backend/internal/domain/billing"
	"jusdash-backend/internal/domain/users"
	"jusdash-backend/internal/providers"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// fakeProvider simulates a payment provider; each operation delegates to a
// function the test controls.
type fakeProvider struct {
	name        string
	parseFn     func(payload []byte, header http.Header) (*providers.PaymentEvent, error)
	checkoutFn  func(req providers.CheckoutRequest) (*providers.CheckoutSession, error)
	reconcileFn func(email string) (*providers.SubscriptionState, error)
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) CreateCheckout(_ context.Context, req providers.CheckoutRequest) (*providers.CheckoutSession, error) {
	return f.checkoutFn(req)
}

func (f *fakeProvider) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*providers.PaymentEvent, error) {
	return f.parseFn(payload, header)
}

func (f *fakeProvider) Reconcile(_ context.Context, email string) (*providers.SubscriptionState, error) {
	return f.reconcileFn(email)
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	database.DB = db
	return db
}

func newRouter(p providers.Provider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(providers.NewRegistry(p))
	r.POST("/webhooks/:provider", h.HandleWebhook)
	return r
}

func post(r *gin.Engine, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func approvedParse(email, planID string, end time.Time) func([]byte, http.Header) (*providers.PaymentEvent, error) {
	return func(payload []byte, _ http.Header) (*providers.PaymentEvent, error) {
		return &providers.PaymentEvent{
			Provider:           "testpay",
			TransactionID:      "txn_42",
			Status:             providers.StatusApproved,
			CustomerEmail:      email,
			Amount:             49.90,
			PlanID:             planID,
			ProviderCustomerID: "cus_42",
			PeriodEnd:          &end,
			Raw:                json.RawMessage(payload),
		}, nil
	}
}

func TestWebhookApprovedGrantsEntitlement(t *testing.T) {
	db := setupDB(t)
	user := users.User{Name: "Ana", Email: "a@x.com", Role: "user"}
	require.NoError(t, db.Create(&user).Error)

	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newRouter(&fakeProvider{name: "testpay", parseFn: approvedParse("a@x.com", "platina", end)})

	rr := post(r, "/webhooks/testpay", []byte(`{"event":"paid"}`))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success": true}`, rr.Body.String())

	var ent billing.Entitlement
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&ent).Error)
	assert.True(t, ent.Subscribed)
	require.NotNil(t, ent.SubscriptionTier)
	assert.Equal(t, "platina", *ent.SubscriptionTier)
	require.NotNil(t, ent.CurrentPeriodEnd)
	assert.Equal(t, end, ent.CurrentPeriodEnd.UTC())

	var payment billing.Payment
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&payment).Error)
	assert.Equal(t, "txn_42", payment.TransactionID)
	assert.Equal(t, "testpay", payment.Provider)
}

func TestWebhookNonApprovedIsAcknowledgedNoOp(t *testing.T) {
	db := setupDB(t)
	user := users.User{Name: "Ana", Email: "a@x.com", Role: "user"}
	require.NoError(t, db.Create(&user).Error)

	tier := "estudante"
	existing := billing.Entitlement{UserID: user.ID, Email: user.Email, Subscribed: true, SubscriptionTier: &tier}
	require.NoError(t, db.Create(&existing).Error)

	for _, status := range []providers.Status{providers.StatusPending, providers.StatusDeclined, providers.StatusCanceled} {
		r := newRouter(&fakeProvider{name: "testpay", parseFn: func(payload []byte, _ http.Header) (*providers.PaymentEvent, error) {
			return &providers.PaymentEvent{Provider: "testpay", Status: status, CustomerEmail: "a@x.com"}, nil
		}})

		rr := post(r, "/webhooks/testpay", []byte(`{"event":"x"}`))
		assert.Equal(t, http.StatusOK, rr.Code, "status %s must still be acknowledged", status)
	}

	var ent billing.Entitlement
	require.NoError(t, db.Where("user_id = ?", user.ID).First(&ent).Error)
	assert.True(t, ent.Subscribed, "non-approved statuses must not touch entitlement")
	assert.Equal(t, "estudante", *ent.SubscriptionTier)

	var count int64
	require.NoError(t, db.Model(&billing.Payment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestWebhookUnknownEmailRejectedWithoutWrites(t *testing.T) {
	db := setupDB(t)

	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newRouter(&fakeProvider{name: "testpay", parseFn: approvedParse("ninguem@x.com", "platina", end)})

	rr := post(r, "/webhooks/testpay", []byte(`{"event":"paid"}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var payments, ents int64
	require.NoError(t, db.Model(&billing.Payment{}).Count(&payments).Error)
	require.NoError(t, db.Model(&billing.Entitlement{}).Count(&ents).Error)
	assert.Zero(t, payments, "no payment row for an unresolvable user")
	assert.Zero(t, ents, "no entitlement row for an unresolvable user")
}

func TestWebhookBadSignatureRejected(t *testing.T) {
	setupDB(t)

	r := newRouter(&fakeProvider{name: "testpay", parseFn: func([]byte, http.Header) (*providers.PaymentEvent, error) {
		return nil, providers.ErrBadSignature
	}})

	rr := post(r, "/webhooks/testpay", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWebhookMalformedPayloadRejected(t *testing.T) {
	setupDB(t)

	r := newRouter(&fakeProvider{name: "testpay", parseFn: func([]byte, http.Header) (*providers.PaymentEvent, error) {
		return nil, providers.ErrMalformedPayload
	}})

	rr := post(r, "/webhooks/testpay", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWebhookUnknownProvider(t *testing.T) {
	setupDB(t)
	r := newRouter(&fakeProvider{name: "testpay"})

	rr := post(r, "/webhooks/nope", []byte(`{}`))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWebhookRedelivery(t *testing.T) {
	db := setupDB(t)
	user := users.User{Name: "Ana", Email: "a@x.com", Role: "user"}
	require.NoError(t, db.Create(&user).Error)

	end := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newRouter(&fakeProvider{name: "testpay", parseFn: approvedParse("a@x.com", "platina", end)})

	require.Equal(t, http.StatusOK, post(r, "/webhooks/testpay", []byte(`{"event":"paid"}`)).Code)
	require.Equal(t, http.StatusOK, post(r, "/webhooks/testpay", []byte(`{"event":"paid"}`)).Code)

	var count int64
	require.NoError(t, db.Model(&billing.Payment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
