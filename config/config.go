package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the integrity analyze service
type Config struct {
	// Server configuration
	Port string

	// LLM provider configuration
	LLMProvider  string
	GeminiAPIKey string
	GeminiModel  string
	OpenAIAPIKey string
	OpenAIModel  string

	// Analysis configuration
	MaxRetries        int
	BaseRetryDelay    time.Duration
	ImageFetchTimeout time.Duration

	// CV preprocessing sidecar (optional)
	VisionServiceURL string

	// Auth configuration (optional)
	JWTSecret         string
	AuthServiceURL    string
	AuthServiceAPIKey string
	RequireAuth       bool

	// RabbitMQ configuration (optional)
	RabbitMQURL        string
	RabbitMQExchange   string
	RabbitMQRoutingKey string

	// HTTP surface
	AllowedOrigins     string
	RateLimitPerMinute int

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	config := &Config{
		// Server defaults
		Port: getEnv("PORT", "8080"),

		// LLM provider defaults
		LLMProvider:  getEnv("LLM_PROVIDER", "gemini"),
		GeminiAPIKey: stripQuotes(getEnv("GOOGLE_API_KEY", getEnv("GEMINI_API_KEY", ""))),
		GeminiModel:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey: stripQuotes(getEnv("OPENAI_API_KEY", "")),
		OpenAIModel:  getEnv("OPENAI_MODEL", "gpt-4o"),

		// Analysis defaults
		MaxRetries:        getIntEnv("MAX_RETRIES", 3),
		BaseRetryDelay:    getDurationEnv("BASE_RETRY_DELAY", 2*time.Second),
		ImageFetchTimeout: getDurationEnv("IMAGE_FETCH_TIMEOUT", 20*time.Second),

		// CV preprocessing defaults (empty = disabled)
		VisionServiceURL: getEnv("VISION_SERVICE_URL", ""),

		// Auth defaults (empty = anonymous access)
		JWTSecret:         getEnv("JWT_SECRET", ""),
		AuthServiceURL:    getEnv("AUTH_SERVICE_URL", ""),
		AuthServiceAPIKey: getEnv("AUTH_SERVICE_API_KEY", ""),
		RequireAuth:       getBoolEnv("REQUIRE_AUTH", false),

		// RabbitMQ defaults (empty URL = publishing disabled)
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		RabbitMQExchange:   getEnv("RABBITMQ_EXCHANGE", "integrity"),
		RabbitMQRoutingKey: getEnv("RABBITMQ_ANALYSIS_ROUTING_KEY", "analysis.completed"),

		// HTTP surface defaults
		AllowedOrigins:     getEnv("ALLOWED_ORIGINS", "*"),
		RateLimitPerMinute: getIntEnv("RATE_LIMIT_PER_MINUTE", 60),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return config
}

// stripQuotes removes wrapping quotes that .env files sometimes leave on
// API keys.
func stripQuotes(value string) string {
	return strings.Trim(strings.TrimSpace(value), `"'`)
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getBoolEnv gets a boolean environment variable or returns a default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
