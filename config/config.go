package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string

	// Storage configuration
	StoreDriver string // pocketbase, postgres, memory
	DatabaseURL string

	// Redis configuration
	RedisURL string

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string
	PubNubUserID       string

	// Fees and limits
	DefaultOrganizerFeePercent decimal.Decimal
	MaxPerPurchase             int
	PayoutFeePercent           decimal.Decimal
	PayoutFlatFee              decimal.Decimal

	// Idempotency
	IdempotencyLockTTL   time.Duration
	IdempotencyResultTTL time.Duration

	// Cleanup configuration
	CartIdleTTL     time.Duration
	CleanupInterval time.Duration

	// Rate limiting
	CheckoutRateLimit int
	RateLimitWindow   time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),

		// Storage
		StoreDriver: getEnv("STORE_DRIVER", "pocketbase"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		// Redis
		RedisURL: getEnv("REDIS_URL", ""),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),
		PubNubUserID:       getEnv("PUBNUB_USER_ID", "eventhub-server"),

		// Fees
		DefaultOrganizerFeePercent: getEnvAsDecimal("DEFAULT_ORGANIZER_FEE_PERCENT", "10"),
		MaxPerPurchase:             getEnvAsInt("MAX_PER_PURCHASE", 10),
		PayoutFeePercent:           getEnvAsDecimal("PAYOUT_FEE_PERCENT", "0"),
		PayoutFlatFee:              getEnvAsDecimal("PAYOUT_FLAT_FEE", "0"),

		// Idempotency
		IdempotencyLockTTL:   getEnvAsDuration("IDEMPOTENCY_LOCK_TTL", "30s"),
		IdempotencyResultTTL: getEnvAsDuration("IDEMPOTENCY_RESULT_TTL", "24h"),

		// Cleanup
		CartIdleTTL:     getEnvAsDuration("CART_IDLE_TTL", "2h"),
		CleanupInterval: getEnvAsDuration("CLEANUP_INTERVAL", "10m"),

		// Rate limiting
		CheckoutRateLimit: getEnvAsInt("CHECKOUT_RATE_LIMIT", 10),
		RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", "1m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}

// getEnvAsDecimal falls back to defaultValue on unparsable or negative input.
func getEnvAsDecimal(key string, defaultValue string) decimal.Decimal {
	valueStr := getEnv(key, defaultValue)
	if value, err := decimal.NewFromString(valueStr); err == nil && !value.IsNegative() {
		return value
	}
	slog.Warn("invalid decimal config, using default", "key", key, "value", valueStr)
	return decimal.RequireFromString(defaultValue)
}
