package billing

import (
	"net/http"

	"jusdash-backend/database"
	"jusdash-backend/internal/domain/users"
	"jusdash-backend/internal/providers"

	"github.com/gin-gonic/gin"
)

// Handler carries the provider registry; persistence goes through the global
// database handle like every other handler package.
type Handler struct {
	registry *providers.Registry
}

func NewHandler(registry *providers.Registry) *Handler {
	return &Handler{registry: registry}
}

// currentUser resolves the authenticated caller from the JWT claims set by
// the auth middleware.
func currentUser(c *gin.Context) (*users.User, bool) {
	userID := c.GetUint("user_id")
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not identified"})
		return nil, false
	}
	var user users.User
	if err := database.DB.Where("id = ?", userID).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
		return nil, false
	}
	return &user, true
}
