package content

import (
	"net/http"

	"jusdash-backend/database"
	domain "jusdash-backend/internal/domain/content"

	"github.com/gin-gonic/gin"
)

// ListLegalCodes returns the Vade-Mecum index (public).
func ListLegalCodes(c *gin.Context) {
	var codes []domain.LegalCode
	if err := database.DB.Order("title ASC").Find(&codes).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load legal codes"})
		return
	}
	c.JSON(http.StatusOK, codes)
}

// GetLegalCode returns one code with article numbers and headings only.
func GetLegalCode(c *gin.Context) {
	var code domain.LegalCode
	if err := database.DB.Where("slug = ?", c.Param("slug")).First(&code).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Legal code not found"})
		return
	}

	var articles []domain.Article
	if err := database.DB.
		Select("id", "legal_code_id", "number", "heading").
		Where("legal_code_id = ?", code.ID).
		Order("id ASC").
		Find(&articles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load articles"})
		return
	}
	code.Articles = articles

	c.JSON(http.StatusOK, code)
}

// GetLegalCodeArticles returns full article text. Subscribers only; the
// route sits behind the subscription guard.
func GetLegalCodeArticles(c *gin.Context) {
	var code domain.LegalCode
	if err := database.DB.Where("slug = ?", c.Param("slug")).First(&code).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Legal code not found"})
		return
	}

	query := database.DB.Where("legal_code_id = ?", code.ID)
	if search := c.Query("search"); search != "" {
		query = query.Where("heading ILIKE ? OR text ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	var articles []domain.Article
	if err := query.Order("id ASC").Find(&articles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load articles"})
		return
	}

	c.JSON(http.StatusOK, articles)
}
