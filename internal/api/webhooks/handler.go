package webhooks

import (
	"errors"
	"io"
	"net/http"

	"jusdash-backend/database"
	"jusdash-backend/internal/domain/users"
	"jusdash-backend/internal/entitlements"
	"jusdash-backend/internal/infra/metrics"
	"jusdash-backend/internal/providers"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const maxWebhookBody = 65536

type Handler struct {
	registry *providers.Registry
}

func NewHandler(registry *providers.Registry) *Handler {
	return &Handler{registry: registry}
}

// HandleWebhook is the single receiver behind POST /webhooks/:provider.
// The adapter verifies and normalizes the payload; everything after that is
// provider-agnostic. Status codes matter more than bodies here, providers
// read them to decide whether to redeliver:
//
//	400: malformed/unsigned payload or unresolvable user; redelivery won't help
//	500: our write failed; the provider must redeliver (the handler is
//	     idempotent, so re-running is safe)
//	200: fully processed, including "not an approved payment, ignored"
func (h *Handler) HandleWebhook(c *gin.Context) {
	provider, err := h.registry.Get(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown payment provider"})
		return
	}

	payload, err := readBody(c, maxWebhookBody)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error reading request body"})
		return
	}

	ev, err := provider.ParseWebhook(c.Request.Context(), payload, c.Request.Header)
	if err != nil {
		metrics.WebhookEvents.WithLabelValues(provider.Name(), "rejected").Inc()
		if errors.Is(err, providers.ErrBadSignature) {
			log.Warn().Str("provider", provider.Name()).Msg("webhook signature verification failed")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Signature verification failed"})
			return
		}
		if errors.Is(err, providers.ErrMalformedPayload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed payload"})
			return
		}
		// Provider follow-up call failed; let the provider redeliver.
		log.Error().Err(err).Str("provider", provider.Name()).Msg("webhook processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	metrics.WebhookEvents.WithLabelValues(provider.Name(), string(ev.Status)).Inc()

	// Pending, declined, canceled, unknown: acknowledged and ignored. They
	// are not failures, just not-yet-actionable; cancellations materialize
	// through the reconciler.
	if ev.Status != providers.StatusApproved {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	if ev.CustomerEmail == "" {
		log.Error().Str("provider", provider.Name()).Str("transaction_id", ev.TransactionID).
			Msg("approved payment without customer email")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Payload missing customer email"})
		return
	}

	var user users.User
	if err := database.DB.Where("email = ?", ev.CustomerEmail).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Money was captured for an email with no account. This must not
			// vanish silently; the log line is the manual-reconciliation trail.
			log.Error().
				Str("provider", provider.Name()).
				Str("email", ev.CustomerEmail).
				Str("transaction_id", ev.TransactionID).
				Float64("amount", ev.Amount).
				Msg("approved payment for unknown account")
			c.JSON(http.StatusBadRequest, gin.H{"error": "User not found for payment email"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User lookup failed"})
		return
	}

	if _, err := entitlements.ApplyPaymentEvent(database.DB, &user, ev); err != nil {
		log.Error().Err(err).Str("provider", provider.Name()).Uint("user_id", user.ID).
			Msg("failed to record payment")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
		return
	}

	log.Info().Str("provider", provider.Name()).Uint("user_id", user.ID).
		Str("plan_id", ev.PlanID).Str("transaction_id", ev.TransactionID).
		Msg("entitlement granted")
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func readBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
