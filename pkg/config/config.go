package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	HTTPAddr       string
	MigrationsPath string

	// Supabase/hosted Postgres convenience:
	// - DATABASE_URL: runtime connection (often PgBouncer/pooler)
	// - DIRECT_URL: direct connection for migrations
	DatabaseURL string
	DirectURL   string

	DB DBConfig

	Shopify ShopifyConfig
}

type DBConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
}

type ShopifyConfig struct {
	APIKey    string
	APISecret string

	// OldAPISecret keeps requests signed with the previous secret verifying
	// during a secret rotation. Clear it once the rotation window closes.
	OldAPISecret string

	APIVersion string

	// AccessMode is the token mode the embedded middleware exchanges for:
	// "online" or "offline".
	AccessMode string

	// PatchTokenPath is where admin document requests bounce to mint a
	// fresh id token. Empty uses the library default.
	PatchTokenPath string
}

func Load() Config {
	// Convenience for local dev: load variables from .env if present.
	// In production, rely on real environment variables.
	_ = godotenv.Load()

	// Cloud Run sets PORT. Prefer it when HTTP_ADDR isn't explicitly set.
	httpAddr := os.Getenv("HTTP_ADDR")
	if httpAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			httpAddr = ":" + port
		} else {
			httpAddr = ":8081"
		}
	}

	return Config{
		AppEnv:         env("APP_ENV", "dev"),
		HTTPAddr:       httpAddr,
		MigrationsPath: os.Getenv("MIGRATIONS_PATH"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DirectURL:      os.Getenv("DIRECT_URL"),
		DB: DBConfig{
			Host:     env("DB_HOST", "localhost"),
			Port:     env("DB_PORT", "5432"),
			Name:     env("DB_NAME", "appauth"),
			User:     env("DB_USER", "appauth"),
			Password: env("DB_PASSWORD", "appauth"),
			SSLMode:  env("DB_SSLMODE", "disable"),
		},
		Shopify: ShopifyConfig{
			APIKey:         os.Getenv("SHOPIFY_API_KEY"),
			APISecret:      os.Getenv("SHOPIFY_API_SECRET"),
			OldAPISecret:   os.Getenv("SHOPIFY_API_OLD_SECRET"),
			APIVersion:     env("SHOPIFY_API_VERSION", "2025-10"),
			AccessMode:     env("SHOPIFY_ACCESS_MODE", "offline"),
			PatchTokenPath: os.Getenv("SHOPIFY_PATCH_TOKEN_PATH"),
		},
	}
}

func env(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
