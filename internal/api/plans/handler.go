package plans

import (
	"net/http"

	"jusdash-backend/internal/domain/plans"

	"github.com/gin-gonic/gin"
)

// ListPlans serves the static plan catalog the pricing page renders.
func ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, plans.All())
}
