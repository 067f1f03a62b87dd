package middleware

import (
	"net/http"
	"time"

	"jusdash-backend/database"
	"jusdash-backend/internal/entitlements"

	"github.com/gin-gonic/gin"
)

// RequireActiveSubscription gates a route on the stored entitlement row.
// This is the cached belief, not provider ground truth: a client that was
// just charged should hit the reconciler before retrying a gated route.
func RequireActiveSubscription() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("user_id")
		if userID == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
			return
		}

		ent, err := entitlements.Get(database.DB, userID)
		if err != nil || !ent.Subscribed {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Subscription not found or inactive",
			})
			return
		}

		if ent.CurrentPeriodEnd != nil && time.Now().After(*ent.CurrentPeriodEnd) {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error": "Your subscription has expired",
			})
			return
		}

		if ent.SubscriptionTier != nil {
			c.Set("subscription_tier", *ent.SubscriptionTier)
		}
		c.Next()
	}
}
