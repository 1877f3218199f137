// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// RedisConfig provides the Redis connection used for pending batches.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// SchedulerConfig provides settings for the asynq outbound delivery queue.
type SchedulerConfig interface {
	RedisConfig
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetOutboundMaxRetry() int
}

// DebounceConfig provides the message aggregation timings.
type DebounceConfig interface {
	GetQuietPeriod() time.Duration
	GetImmediateThreshold() int
	GetAccumulationTTL() time.Duration
}

// ClaimsConfig provides claim bookkeeping settings.
type ClaimsConfig interface {
	GetHistoryCapacity() int
}

// JWTConfig provides JWT validation settings for the admin API.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
	GetWebhookRateLimit() float64
	GetWebhookBurst() int
}

// WhatsAppConfig provides settings for the chat gateway.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
	GetWhatsAppWebhookSecret() string
	GetWhatsAppSendRate() float64
	GetWhatsAppOperatorIdentity() string
}

// MediaConfig provides settings for the MinIO bucket holding chat attachments.
type MediaConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetMinioBucketChatMedia() string
	GetMinIOMaxFileSize() int64
	IsMinIOEnabled() bool
}

// ClassifierConfig provides settings for the evidence classifier model.
type ClassifierConfig interface {
	GetMoonshotAPIKey() string
	GetMoonshotBaseURL() string
	GetClassifierModel() string
	GetClassifierTimeout() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                   string
	HTTPAddr              string
	DatabaseURL           string
	RedisURL              string
	RedisTLSInsecure      bool
	AsynqQueueName        string
	AsynqConcurrency      int
	OutboundMaxRetry      int
	JWTAccessSecret       string
	CORSAllowAll          bool
	CORSOrigins           []string
	CORSAllowCreds        bool
	WebhookRateLimit      float64
	WebhookBurst          int
	QuietPeriod           time.Duration
	ImmediateThreshold    int
	AccumulationTTL       time.Duration
	HistoryCapacity       int
	WhatsAppURL           string
	WhatsAppKey           string
	WhatsAppDeviceID      string
	WhatsAppWebhookSecret string
	WhatsAppSendRate      float64
	WhatsAppOperator      string
	MinIOEndpoint         string
	MinIOAccessKey        string
	MinIOSecretKey        string
	MinIOUseSSL           bool
	MinioBucketChatMedia  string
	MinIOMaxFileSize      int64
	MoonshotAPIKey        string
	MoonshotBaseURL       string
	ClassifierModel       string
	ClassifierTimeout     time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// RedisConfig / SchedulerConfig implementation
func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) GetOutboundMaxRetry() int  { return c.OutboundMaxRetry }

// DebounceConfig implementation
func (c *Config) GetQuietPeriod() time.Duration     { return c.QuietPeriod }
func (c *Config) GetImmediateThreshold() int        { return c.ImmediateThreshold }
func (c *Config) GetAccumulationTTL() time.Duration { return c.AccumulationTTL }

// ClaimsConfig implementation
func (c *Config) GetHistoryCapacity() int { return c.HistoryCapacity }

// JWTConfig implementation
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string          { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool        { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string     { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool      { return c.CORSAllowCreds }
func (c *Config) GetWebhookRateLimit() float64 { return c.WebhookRateLimit }
func (c *Config) GetWebhookBurst() int         { return c.WebhookBurst }

// WhatsAppConfig implementation
func (c *Config) GetWhatsAppURL() string              { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string              { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string         { return c.WhatsAppDeviceID }
func (c *Config) GetWhatsAppWebhookSecret() string    { return c.WhatsAppWebhookSecret }
func (c *Config) GetWhatsAppSendRate() float64        { return c.WhatsAppSendRate }
func (c *Config) GetWhatsAppOperatorIdentity() string { return c.WhatsAppOperator }

// MediaConfig implementation
func (c *Config) GetMinIOEndpoint() string        { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string       { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string       { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool            { return c.MinIOUseSSL }
func (c *Config) GetMinioBucketChatMedia() string { return c.MinioBucketChatMedia }
func (c *Config) GetMinIOMaxFileSize() int64      { return c.MinIOMaxFileSize }
func (c *Config) IsMinIOEnabled() bool            { return c.MinIOEndpoint != "" }

// ClassifierConfig implementation
func (c *Config) GetMoonshotAPIKey() string           { return c.MoonshotAPIKey }
func (c *Config) GetMoonshotBaseURL() string          { return c.MoonshotBaseURL }
func (c *Config) GetClassifierModel() string          { return c.ClassifierModel }
func (c *Config) GetClassifierTimeout() time.Duration { return c.ClassifierTimeout }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	cfg := &Config{
		Env:                   getEnv("APP_ENV", "development"),
		HTTPAddr:              getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:           getEnv("DATABASE_URL", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		RedisTLSInsecure:      strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:        getEnv("ASYNQ_QUEUE", "outbound"),
		AsynqConcurrency:      mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		OutboundMaxRetry:      mustInt(getEnv("OUTBOUND_MAX_RETRY", "5")),
		JWTAccessSecret:       getEnv("JWT_ACCESS_SECRET", ""),
		CORSAllowAll:          corsAllowAll,
		CORSOrigins:           corsOrigins,
		CORSAllowCreds:        strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		WebhookRateLimit:      mustFloat(getEnv("WEBHOOK_RATE_LIMIT", "20")),
		WebhookBurst:          mustInt(getEnv("WEBHOOK_BURST", "40")),
		QuietPeriod:           mustDuration(getEnv("QUIET_PERIOD", "5s")),
		ImmediateThreshold:    mustInt(getEnv("IMMEDIATE_THRESHOLD", "200")),
		AccumulationTTL:       mustDuration(getEnv("ACCUMULATION_TTL", "10m")),
		HistoryCapacity:       mustInt(getEnv("HISTORY_CAPACITY", "10")),
		WhatsAppURL:           getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:           getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID:      getEnv("WHATSAPP_DEVICE_ID", ""),
		WhatsAppWebhookSecret: getEnv("WHATSAPP_WEBHOOK_SECRET", ""),
		WhatsAppSendRate:      mustFloat(getEnv("WHATSAPP_SEND_RATE", "5")),
		WhatsAppOperator:      getEnv("WHATSAPP_OPERATOR_IDENTITY", ""),
		MinIOEndpoint:         getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:        getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:        getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:           strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		MinioBucketChatMedia:  getEnv("MINIO_BUCKET_CHAT_MEDIA", "chat-media"),
		MinIOMaxFileSize:      int64(mustInt(getEnv("MINIO_MAX_FILE_SIZE", "16777216"))),
		MoonshotAPIKey:        getEnv("MOONSHOT_API_KEY", ""),
		MoonshotBaseURL:       getEnv("MOONSHOT_BASE_URL", ""),
		ClassifierModel:       getEnv("CLASSIFIER_MODEL", "kimi-k2-turbo-preview"),
		ClassifierTimeout:     mustDuration(getEnv("CLASSIFIER_TIMEOUT", "45s")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.QuietPeriod <= 0 {
		return fmt.Errorf("QUIET_PERIOD must be a positive duration")
	}
	if c.ImmediateThreshold <= 0 {
		return fmt.Errorf("IMMEDIATE_THRESHOLD must be a positive integer")
	}
	if c.AccumulationTTL < c.QuietPeriod {
		return fmt.Errorf("ACCUMULATION_TTL must not be shorter than QUIET_PERIOD")
	}
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("HISTORY_CAPACITY must be a positive integer")
	}
	if c.JWTAccessSecret == "" {
		return fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if c.WebhookRateLimit <= 0 || c.WebhookBurst <= 0 {
		return fmt.Errorf("WEBHOOK_RATE_LIMIT and WEBHOOK_BURST must be positive")
	}
	if c.CORSAllowAll && c.CORSAllowCreds {
		return fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0
	}
	return result
}

func mustFloat(value string) float64 {
	result, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
