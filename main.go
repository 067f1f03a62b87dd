package main

import (
	"os"
	"time"

	"jusdash-backend/config"
	"jusdash-backend/database"
	routes "jusdash-backend/internal/app/http"
	"jusdash-backend/internal/app/http/middleware"
	"jusdash-backend/internal/providers"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// gin.SetMode(gin.ReleaseMode) uncomment only in production
	config.Load()
	database.InitDB()

	registry := buildRegistry()
	if len(registry.All()) == 0 {
		log.Warn().Msg("no payment provider configured; checkout and reconciliation are disabled")
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.C.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(middleware.PrometheusMiddleware())

	routes.RegisterRoutes(r, registry)

	if err := r.Run(":" + config.C.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// buildRegistry wires one adapter per provider that has credentials. The
// first registered provider is the default for checkouts that don't pick one.
func buildRegistry() *providers.Registry {
	var active []providers.Provider

	if config.C.Stripe.SecretKey != "" {
		active = append(active, providers.NewStripe(config.C.Stripe))
	}
	if config.C.MercadoPago.AccessToken != "" {
		active = append(active, providers.NewMercadoPago(config.C.MercadoPago))
	}
	if config.C.Paddle.APIKey != "" {
		p, err := providers.NewPaddle(config.C.Paddle)
		if err != nil {
			log.Fatal().Err(err).Msg("paddle configuration invalid")
		}
		active = append(active, p)
	}

	for _, p := range active {
		log.Info().Str("provider", p.Name()).Msg("payment provider enabled")
	}
	return providers.NewRegistry(active...)
}
