package billing

import (
	"net/http"

	"jusdash-backend/database"
	domain "jusdash-backend/internal/domain/billing"

	"github.com/gin-gonic/gin"
)

// GetPaymentHistory returns the caller's audit trail, newest first. This is
// display-only data: entitlement is never reconstructed from it.
func (h *Handler) GetPaymentHistory(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	var payments []domain.Payment
	if err := database.DB.
		Where("user_id = ?", user.ID).
		Order("created_at DESC").
		Find(&payments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load payments"})
		return
	}

	c.JSON(http.StatusOK, payments)
}
