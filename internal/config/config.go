package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port      string
	Env       string
	LogLevel  string
	LogFormat string

	// Storage
	StoreBackend        string // "memory" or "postgres"
	DatabaseURL         string
	StoreCreateRetries  int
	StoreRetryBaseDelay time.Duration

	// Scheduling rules
	SlotGranularity            time.Duration
	Timezone                   string
	BookingMaxPendingPerDoctor int
	BookingRateLimitPerHour    int

	// Redis
	RedisAddr            string
	RedisPassword        string
	RedisTLS             bool
	AvailabilityCacheTTL time.Duration

	// Auth
	ActorJWTSecret string
	AdminJWTSecret string

	// HTTP edge
	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int

	// Notifications
	NotifyTransport    string // log, memory, sqs, rabbitmq, outbox
	NotifyTimeout      time.Duration
	NotifyQueueURL     string
	RabbitMQURL        string
	NotifyExchange     string
	OutboxPollInterval time.Duration
	WorkerCount        int
	EmailProvider      string // stub, ses, sendgrid
	EmailFromAddress   string
	EmailFromName      string
	SendGridAPIKey     string

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	AuditTable          string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		Env:       getEnv("ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		StoreBackend:        strings.ToLower(getEnv("STORE_BACKEND", "memory")),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		StoreCreateRetries:  getEnvAsInt("STORE_CREATE_RETRIES", 3),
		StoreRetryBaseDelay: getEnvAsDuration("STORE_RETRY_BASE_DELAY", 20*time.Millisecond),

		SlotGranularity:            getEnvAsDuration("SLOT_GRANULARITY", 60*time.Minute),
		Timezone:                   getEnv("SCHEDULER_TIMEZONE", "Asia/Kolkata"),
		BookingMaxPendingPerDoctor: getEnvAsInt("BOOKING_MAX_PENDING_PER_DOCTOR", 0),
		BookingRateLimitPerHour:    getEnvAsInt("BOOKING_RATE_LIMIT_PER_HOUR", 0),

		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisPassword:        getEnv("REDIS_PASSWORD", ""),
		RedisTLS:             getEnvAsBool("REDIS_TLS", false),
		AvailabilityCacheTTL: getEnvAsDuration("AVAILABILITY_CACHE_TTL", 5*time.Minute),

		ActorJWTSecret: getEnv("ACTOR_JWT_SECRET", ""),
		AdminJWTSecret: getEnv("ADMIN_JWT_SECRET", ""),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_PER_SECOND", 20),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 40),

		NotifyTransport:    strings.ToLower(getEnv("NOTIFY_TRANSPORT", "log")),
		NotifyTimeout:      getEnvAsDuration("NOTIFY_TIMEOUT", 3*time.Second),
		NotifyQueueURL:     getEnv("NOTIFY_QUEUE_URL", ""),
		RabbitMQURL:        getEnv("RABBITMQ_URL", ""),
		NotifyExchange:     getEnv("NOTIFY_EXCHANGE", "appointments"),
		OutboxPollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		WorkerCount:        getEnvAsInt("WORKER_COUNT", 2),
		EmailProvider:      strings.ToLower(getEnv("EMAIL_PROVIDER", "stub")),
		EmailFromAddress:   getEnv("EMAIL_FROM_ADDRESS", "care@ayurwell.example"),
		EmailFromName:      getEnv("EMAIL_FROM_NAME", "AyurWell Care"),
		SendGridAPIKey:     getEnv("SENDGRID_API_KEY", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		AuditTable:          getEnv("AUDIT_TABLE", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
