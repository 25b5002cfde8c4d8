// Package config provides configuration loading and management for the application.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Path to the affiliate activity table
	DataFile string

	// Path to the payout account table; optional, placeholder accounts are
	// used when it is absent
	AccountFile string

	// Remote affiliate network API; optional second record source
	AffiliateAPIURL string
	AffiliateAPIKey string

	// Payment collaborator settings
	PaymanURL    string
	PaymanAPIKey string
	Currency     string

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Scoring policy values
	CommissionRate      float64
	WeightConversions   float64
	WeightRevenue       float64
	WeightAvgOrderValue float64

	// Timeouts and circuit breaker settings
	RequestTimeout    time.Duration
	PaymentTimeout    time.Duration
	BreakerThreshold  int
	CircuitResetDelay time.Duration

	// Screening settings
	EnableScreening         bool
	ScreeningIQRMultiplier  float64
	MaxRevenuePerConversion float64

	// Outcome report webhook; optional
	ReportWebhookURL    string
	ReportWebhookAPIKey string
}

// Load creates a new Config from environment variables
func Load() Config {
	return Config{
		Port:            GetEnvOrDefault("PORT", "8080"),
		DataFile:        GetEnvOrDefault("DATA_FILE", "data.csv"),
		AccountFile:     GetEnvOrDefault("ACCOUNT_FILE", ""),
		AffiliateAPIURL: GetEnvOrDefault("AFFILIATE_API_URL", ""),
		AffiliateAPIKey: GetEnvOrDefault("AFFILIATE_API_KEY", ""),
		PaymanURL:       GetEnvOrDefault("PAYMAN_URL", "https://api.payman.dev"),
		PaymanAPIKey:    GetEnvOrDefault("PAYMAN_API_KEY", ""),
		Currency:        GetEnvOrDefault("PAYOUT_CURRENCY", "USD"),
		OtelEndpoint:    GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		CommissionRate:      GetEnvAsFloat("COMMISSION_RATE", 0.10),
		WeightConversions:   GetEnvAsFloat("WEIGHT_CONVERSIONS", 0.3),
		WeightRevenue:       GetEnvAsFloat("WEIGHT_REVENUE", 0.005),
		WeightAvgOrderValue: GetEnvAsFloat("WEIGHT_AVG_ORDER_VALUE", 0.2),

		RequestTimeout:    GetEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		PaymentTimeout:    GetEnvAsDuration("PAYMENT_TIMEOUT", 15*time.Second),
		BreakerThreshold:  GetEnvAsInt("BREAKER_THRESHOLD", 5),
		CircuitResetDelay: GetEnvAsDuration("CIRCUIT_RESET_DELAY", 5*time.Minute),

		EnableScreening:         GetEnvAsBool("ENABLE_SCREENING", true),
		ScreeningIQRMultiplier:  GetEnvAsFloat("SCREENING_IQR_MULTIPLIER", 1.5),
		MaxRevenuePerConversion: GetEnvAsFloat("MAX_REVENUE_PER_CONVERSION", 0),

		ReportWebhookURL:    GetEnvOrDefault("REPORT_WEBHOOK_URL", ""),
		ReportWebhookAPIKey: GetEnvOrDefault("REPORT_WEBHOOK_API_KEY", ""),
	}
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
