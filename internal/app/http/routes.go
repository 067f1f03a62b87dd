package routes

import (
	authapi "jusdash-backend/internal/api/auth"
	billingapi "jusdash-backend/internal/api/billing"
	contentapi "jusdash-backend/internal/api/content"
	plansapi "jusdash-backend/internal/api/plans"
	usersapi "jusdash-backend/internal/api/users"
	webhooksapi "jusdash-backend/internal/api/webhooks"
	"jusdash-backend/internal/app/http/middleware"
	"jusdash-backend/internal/providers"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(r *gin.Engine, registry *providers.Registry) {
	billing := billingapi.NewHandler(registry)
	webhooks := webhooksapi.NewHandler(registry)

	// Webhooks bypass every body-rewriting middleware: signature checks need
	// the byte-exact payload the provider sent.
	r.POST("/webhooks/:provider", webhooks.HandleWebhook)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := r.Group("/")
	public.Use(middleware.SanitizeInputMiddleware())

	public.POST("/register", authapi.Register)
	public.POST("/login", authapi.Login)
	public.GET("/plans", plansapi.ListPlans)
	public.GET("/vademecum", contentapi.ListLegalCodes)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware())
	auth.GET("/me", usersapi.GetCurrentUser)
	auth.GET("/vademecum/:slug", contentapi.GetLegalCode)

	auth.POST("/billing/checkout", billing.CreateCheckoutSession)
	auth.GET("/billing/subscription", billing.CheckSubscription)
	auth.GET("/billing/entitlement", billing.GetEntitlement)
	auth.GET("/billing/payments", billing.GetPaymentHistory)

	// Subscribed users
	subscribed := auth.Group("/")
	subscribed.Use(middleware.RequireActiveSubscription())
	subscribed.POST("/billing/portal", billing.CreateBillingPortal)
	subscribed.GET("/vademecum/:slug/articles", contentapi.GetLegalCodeArticles)
}
