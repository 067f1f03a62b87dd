package billing

import (
	"errors"
	"net/http"

	"jusdash-backend/config"
	"jusdash-backend/internal/domain/plans"
	"jusdash-backend/internal/infra/metrics"
	"jusdash-backend/internal/providers"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// CreateCheckoutSession opens a provider-hosted checkout for a catalog plan
// and returns its URL. Entitlement is never written here: access is only
// granted once a webhook or a reconciliation observes the paid subscription.
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	var body struct {
		PlanID   string `json:"plan_id"`
		Provider string `json:"provider"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.PlanID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing or invalid plan_id"})
		return
	}

	user, ok := currentUser(c)
	if !ok {
		return
	}

	// allow-list plan id
	if _, ok := plans.ByID(body.PlanID); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown plan_id"})
		return
	}

	provider, err := h.registry.Get(body.Provider)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown or unconfigured payment provider"})
		return
	}

	sess, err := provider.CreateCheckout(c.Request.Context(), providers.CheckoutRequest{
		PlanID:     body.PlanID,
		UserID:     user.ID,
		Email:      user.Email,
		SuccessURL: config.C.AppURL + "/assinatura?status=sucesso",
		CancelURL:  config.C.AppURL + "/assinatura?status=cancelado",
	})
	if err != nil {
		if errors.Is(err, providers.ErrInvalidPlan) {
			metrics.CheckoutSessions.WithLabelValues(provider.Name(), "invalid_plan").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "Plan is not available through this provider"})
			return
		}
		metrics.CheckoutSessions.WithLabelValues(provider.Name(), "provider_error").Inc()
		log.Error().Err(err).Str("provider", provider.Name()).Uint("user_id", user.ID).
			Msg("checkout session creation failed")
		// Retryable by the caller; keep the provider's message for diagnostics.
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create checkout session", "details": err.Error()})
		return
	}

	metrics.CheckoutSessions.WithLabelValues(provider.Name(), "created").Inc()
	c.JSON(http.StatusOK, gin.H{"url": sess.URL})
}
