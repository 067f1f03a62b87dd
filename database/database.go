package database

import (
	"log"
	"os"

	"jusdash-backend/internal/domain/billing"
	"jusdash-backend/internal/domain/content"
	"jusdash-backend/internal/domain/users"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func InitDB() {
	dsn := os.Getenv("DB_URL")
	if dsn == "" {
		log.Fatal("DB_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	DB = db

	if err := Migrate(DB); err != nil {
		log.Fatal("AutoMigrate error:", err)
	}
}

// Migrate applies the schema for every domain model. Split out from InitDB
// so tests can run it against their own database handle.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		// core
		&users.User{},
		&billing.Entitlement{},
		&billing.Payment{},

		// vade-mecum reference
		&content.LegalCode{},
		&content.Article{},
	)
}
