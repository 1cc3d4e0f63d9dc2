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

// RedisConfig provides Redis connection settings shared by the session store,
// token store and scheduler.
type RedisConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
}

// HTTPConfig provides HTTP server settings.
type HTTPConfig interface {
	GetEnv() string
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
}

// AdminConfig provides the static API key protecting non-public routes.
type AdminConfig interface {
	GetAdminAPIKey() string
}

// WhatsAppConfig provides settings for the outbound WhatsApp gateway client.
type WhatsAppConfig interface {
	GetWhatsAppURL() string
	GetWhatsAppKey() string
	GetWhatsAppDeviceID() string
}

// RouterConfig provides settings for deep-link generation.
type RouterConfig interface {
	GetAppBaseURL() string
	GetDeepLinkScheme() string
	GetTokenTTL() time.Duration
}

// SessionConfig provides session TTL policy settings.
type SessionConfig interface {
	GetSessionTTL() time.Duration
	// GetSessionSliding selects sliding-on-activity (true) or
	// fixed-from-creation (false) expiry.
	GetSessionSliding() bool
}

// GhostConfig provides settings for the idle-lead sweep and nudge dispatch.
type GhostConfig interface {
	RedisConfig
	GetSweepInterval() time.Duration
	GetIdleThreshold() time.Duration
	GetMaxNudges() int
	GetDispatchRetries() int
	GetDispatchBackoffBase() time.Duration
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
}

// ScoringConfig provides lead temperature thresholds.
type ScoringConfig interface {
	GetScoreWarm() int
	GetScoreHot() int
	GetScoreBurning() int
}

// WebhookConfig provides inbound routing fallback behavior.
type WebhookConfig interface {
	// GetFallbackTenantID is the tenant unrouted contacts are assigned to.
	// Empty means unrouted messages are dropped.
	GetFallbackTenantID() string
}

// =============================================================================
// Config
// =============================================================================

// Config holds all application configuration, loaded from the environment.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL      string
	RedisURL         string
	RedisTLSInsecure bool

	CORSAllowAll bool
	CORSOrigins  []string

	AdminAPIKey string

	WhatsAppURL      string
	WhatsAppKey      string
	WhatsAppDeviceID string

	AppBaseURL     string
	DeepLinkScheme string
	TokenTTL       time.Duration

	SessionTTL     time.Duration
	SessionSliding bool

	SweepInterval       time.Duration
	IdleThreshold       time.Duration
	MaxNudges           int
	DispatchRetries     int
	DispatchBackoffBase time.Duration
	AsynqQueueName      string
	AsynqConcurrency    int

	ConsultationFollowupDelay time.Duration
	AppointmentReminderDelay  time.Duration

	ScoreWarm    int
	ScoreHot     int
	ScoreBurning int

	FallbackTenantID string
}

// Load reads configuration from the environment (and .env when present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: getBool("REDIS_TLS_INSECURE", false),

		CORSAllowAll: getBool("CORS_ALLOW_ALL", false),
		CORSOrigins:  splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200")),

		AdminAPIKey: getEnv("ADMIN_API_KEY", ""),

		WhatsAppURL:      getEnv("WHATSAPP_URL", ""),
		WhatsAppKey:      getEnv("WHATSAPP_KEY", ""),
		WhatsAppDeviceID: getEnv("WHATSAPP_DEVICE_ID", ""),

		AppBaseURL:     getEnv("APP_BASE_URL", "http://localhost:8080"),
		DeepLinkScheme: getEnv("DEEPLINK_SCHEME", "whatsapp"),
		TokenTTL:       getDuration("TOKEN_TTL", 0),

		SessionTTL:     getDuration("SESSION_TTL", 24*time.Hour),
		SessionSliding: getBool("SESSION_SLIDING", true),

		SweepInterval:       getDuration("SWEEP_INTERVAL", 5*time.Minute),
		IdleThreshold:       getDuration("IDLE_THRESHOLD", 30*time.Minute),
		MaxNudges:           getInt("MAX_NUDGES", 3),
		DispatchRetries:     getInt("DISPATCH_RETRIES", 3),
		DispatchBackoffBase: getDuration("DISPATCH_BACKOFF_BASE", 2*time.Second),
		AsynqQueueName:      getEnv("ASYNQ_QUEUE", "leadrouter"),
		AsynqConcurrency:    getInt("ASYNQ_CONCURRENCY", 10),

		ConsultationFollowupDelay: getDuration("CONSULTATION_FOLLOWUP_DELAY", 4*time.Hour),
		AppointmentReminderDelay:  getDuration("APPOINTMENT_REMINDER_DELAY", 24*time.Hour),

		ScoreWarm:    getInt("SCORE_T_WARM", 30),
		ScoreHot:     getInt("SCORE_T_HOT", 60),
		ScoreBurning: getInt("SCORE_T_BURNING", 85),

		FallbackTenantID: getEnv("FALLBACK_TENANT_ID", ""),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive")
	}
	if cfg.MaxNudges < 1 {
		return nil, fmt.Errorf("MAX_NUDGES must be at least 1")
	}
	if !(cfg.ScoreWarm < cfg.ScoreHot && cfg.ScoreHot < cfg.ScoreBurning) {
		return nil, fmt.Errorf("score thresholds must satisfy warm < hot < burning")
	}

	return cfg, nil
}

// =============================================================================
// Interface Implementations
// =============================================================================

func (c *Config) GetEnv() string                        { return c.Env }
func (c *Config) GetHTTPAddr() string                   { return c.HTTPAddr }
func (c *Config) GetDatabaseURL() string                { return c.DatabaseURL }
func (c *Config) GetRedisURL() string                   { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool             { return c.RedisTLSInsecure }
func (c *Config) GetCORSAllowAll() bool                 { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string              { return c.CORSOrigins }
func (c *Config) GetAdminAPIKey() string                { return c.AdminAPIKey }
func (c *Config) GetWhatsAppURL() string                { return c.WhatsAppURL }
func (c *Config) GetWhatsAppKey() string                { return c.WhatsAppKey }
func (c *Config) GetWhatsAppDeviceID() string           { return c.WhatsAppDeviceID }
func (c *Config) GetAppBaseURL() string                 { return c.AppBaseURL }
func (c *Config) GetDeepLinkScheme() string             { return c.DeepLinkScheme }
func (c *Config) GetTokenTTL() time.Duration            { return c.TokenTTL }
func (c *Config) GetSessionTTL() time.Duration          { return c.SessionTTL }
func (c *Config) GetSessionSliding() bool               { return c.SessionSliding }
func (c *Config) GetSweepInterval() time.Duration       { return c.SweepInterval }
func (c *Config) GetIdleThreshold() time.Duration       { return c.IdleThreshold }
func (c *Config) GetMaxNudges() int                     { return c.MaxNudges }
func (c *Config) GetDispatchRetries() int               { return c.DispatchRetries }
func (c *Config) GetDispatchBackoffBase() time.Duration { return c.DispatchBackoffBase }
func (c *Config) GetAsynqQueueName() string             { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int              { return c.AsynqConcurrency }

func (c *Config) GetConsultationFollowupDelay() time.Duration { return c.ConsultationFollowupDelay }
func (c *Config) GetAppointmentReminderDelay() time.Duration  { return c.AppointmentReminderDelay }
func (c *Config) GetScoreWarm() int                           { return c.ScoreWarm }
func (c *Config) GetScoreHot() int                            { return c.ScoreHot }
func (c *Config) GetScoreBurning() int                        { return c.ScoreBurning }
func (c *Config) GetFallbackTenantID() string                 { return c.FallbackTenantID }

// =============================================================================
// Helpers
// =============================================================================

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	return strings.EqualFold(value, "true") || value == "1"
}

func getInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallback time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
