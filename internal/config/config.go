package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides the application configuration.
var Module = fx.Provide(Load)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	AuthJWTSecret string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Pricing settings keep their raw string form so an unset value is
	// distinguishable from an explicit zero. The pricing engine parses and
	// validates them; they are never defaulted silently.
	MarkupPercent       string
	CompanySplitPercent string
	CharitySplitPercent string
	CreditsMultiplier   string

	DefaultCause string

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	CatalogBaseURL      string
	CatalogAuthURL      string
	CatalogClientID     string
	CatalogClientSecret string

	FulfillmentQueueSize   int
	FulfillmentMaxAttempts int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "giftpact"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),

		AuthJWTSecret: strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "giftpact"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 4),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 16),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 1800),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       getenvInt("REDIS_DB", 0),

		MarkupPercent:       strings.TrimSpace(getenv("MARKUP_PERCENT", "")),
		CompanySplitPercent: strings.TrimSpace(getenv("PROFIT_SPLIT_COMPANY", "")),
		CharitySplitPercent: strings.TrimSpace(getenv("PROFIT_SPLIT_CHARITY", "")),
		CreditsMultiplier:   strings.TrimSpace(getenv("CREDITS_MULTIPLIER", "")),

		DefaultCause: getenv("DEFAULT_CAUSE", "general-fund"),

		StripeSecretKey:     strings.TrimSpace(getenv("STRIPE_SECRET_KEY", "")),
		StripeWebhookSecret: strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
		CheckoutSuccessURL:  getenv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
		CheckoutCancelURL:   getenv("CHECKOUT_CANCEL_URL", "http://localhost:3000/checkout/cancel"),

		CatalogBaseURL:      getenv("CATALOG_BASE_URL", "https://giftcards.reloadly.com"),
		CatalogAuthURL:      getenv("CATALOG_AUTH_URL", "https://auth.reloadly.com/oauth/token"),
		CatalogClientID:     strings.TrimSpace(getenv("CATALOG_CLIENT_ID", "")),
		CatalogClientSecret: strings.TrimSpace(getenv("CATALOG_CLIENT_SECRET", "")),

		FulfillmentQueueSize:   getenvInt("FULFILLMENT_QUEUE_SIZE", 64),
		FulfillmentMaxAttempts: getenvInt("FULFILLMENT_MAX_ATTEMPTS", 5),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}
