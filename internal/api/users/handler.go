package users

import (
	"net/http"

	"jusdash-backend/database"
	"jusdash-backend/internal/entitlements"

	domain "jusdash-backend/internal/domain/users"

	"github.com/gin-gonic/gin"
)

// GetCurrentUser returns the caller plus their stored entitlement snapshot.
// The snapshot is the cached belief only; the dashboard re-pulls ground
// truth through the reconciler when it matters.
func GetCurrentUser(c *gin.Context) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return
	}

	var user domain.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return
	}

	resp := gin.H{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
	}

	if ent, err := entitlements.Get(database.DB, userID); err == nil {
		resp["entitlement"] = ent
	}

	c.JSON(http.StatusOK, resp)
}
