package billing

import (
	"net/http"

	"jusdash-backend/config"
	"jusdash-backend/internal/providers"

	"github.com/gin-gonic/gin"
)

// CreateBillingPortal returns a hosted customer-portal URL for providers
// that support one (Stripe, Paddle). Gated behind the subscription guard:
// only subscribers have anything to manage.
func (h *Handler) CreateBillingPortal(c *gin.Context) {
	var body struct {
		Provider string `json:"provider"`
	}
	// Empty body is fine; the default provider is used.
	_ = c.ShouldBindJSON(&body)

	user, ok := currentUser(c)
	if !ok {
		return
	}

	provider, err := h.registry.Get(body.Provider)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown or unconfigured payment provider"})
		return
	}

	portal, ok := provider.(providers.PortalProvider)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": "This provider has no customer portal"})
		return
	}

	url, err := portal.CreatePortal(c.Request.Context(), user.Email, config.C.AppURL+"/assinatura")
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Could not create billing portal session", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
