package config

import (
	"log"

	"jusdash-backend/internal/providers"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is built once at startup and handed into the pieces that need it
// (provider adapters take their sub-structs in their constructors); nothing
// reads the environment mid-request.
type Config struct {
	Port       string `env:"PORT" envDefault:"8080"`
	DBURL      string `env:"DB_URL,required"`
	JWTSecret  string `env:"JWT_SECRET,required"`
	AppURL     string `env:"APP_URL" envDefault:"http://localhost:5173"`
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"http://localhost:5173"`

	Stripe      providers.StripeConfig
	Paddle      providers.PaddleConfig
	MercadoPago providers.MercadoPagoConfig
}

// C is the process-wide configuration, populated by Load.
var C Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}
	if err := env.Parse(&C); err != nil {
		log.Fatalf("Invalid environment configuration: %v", err)
	}
}
