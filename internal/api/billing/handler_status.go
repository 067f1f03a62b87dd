package billing

import (
	"errors"
	"net/http"

	"jusdash-backend/database"
	"jusdash-backend/internal/domain/billing"
	"jusdash-backend/internal/entitlements"
	"jusdash-backend/internal/infra/metrics"
	"jusdash-backend/internal/providers"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// CheckSubscription is the pull-based reconciler: it asks the providers for
// ground truth, overwrites the entitlement row to match, and returns the
// resolved state. This is how the client recovers from missed webhooks:
// call it on every checkout-return redirect and from the refresh action.
//
// A provider failure never downgrades anyone: subscribed=false is only
// written when every configured provider answered successfully.
func (h *Handler) CheckSubscription(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var active *providers.SubscriptionState
	failed := false
	for _, provider := range h.registry.All() {
		state, err := provider.Reconcile(c.Request.Context(), user.Email)
		if err != nil {
			failed = true
			log.Warn().Err(err).Str("provider", provider.Name()).Str("email", user.Email).
				Msg("reconciliation call failed")
			continue
		}
		if state.Subscribed {
			active = state
			break
		}
	}

	if active == nil && failed {
		// Stale row stays as-is; the client keeps showing the last known state.
		metrics.Reconciliations.WithLabelValues("provider_error").Inc()
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment provider unreachable, subscription status unchanged"})
		return
	}

	state := active
	if state == nil {
		state = &providers.SubscriptionState{Subscribed: false}
	}

	ent, err := entitlements.ApplyReconciliation(database.DB, user, state)
	if err != nil {
		metrics.Reconciliations.WithLabelValues("store_error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to persist subscription status"})
		return
	}

	if ent.Subscribed {
		metrics.Reconciliations.WithLabelValues("subscribed").Inc()
	} else {
		metrics.Reconciliations.WithLabelValues("unsubscribed").Inc()
	}
	c.JSON(http.StatusOK, statusResponse(ent))
}

// GetEntitlement is the cheap read the dashboard uses on load: the stored
// row only, no provider round-trip.
func (h *Handler) GetEntitlement(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	ent, err := entitlements.Get(database.DB, user.ID)
	if err != nil {
		if errors.Is(err, entitlements.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"subscribed": false})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load entitlement"})
		return
	}
	c.JSON(http.StatusOK, statusResponse(ent))
}

func statusResponse(ent *billing.Entitlement) gin.H {
	resp := gin.H{"subscribed": ent.Subscribed}
	if ent.Subscribed {
		if ent.SubscriptionTier != nil {
			resp["subscription_tier"] = *ent.SubscriptionTier
		}
		if ent.CurrentPeriodEnd != nil {
			resp["subscription_end"] = ent.CurrentPeriodEnd.UTC()
		}
	}
	return resp
}
