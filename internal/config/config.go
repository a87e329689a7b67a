package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	HTTPAddr    string
	DatabaseURL string
	RedisURL    string
	AsynqQueue  string

	CORSAllowAll bool
	CORSOrigins  []string

	// Webhook
	WebhookToken    string
	DefaultInstance string

	// Messaging gateway
	GatewayURL      string
	GatewayAPIKey   string
	GatewayRateRPS  float64
	GatewayTimeout  time.Duration

	// AI collaborators
	GenAIAPIKey       string
	CompletionModel   string
	CompletionTimeout time.Duration
	PersonaPrompt     string

	// Context assembly
	KnowledgeTopN int
	HistoryTurns  int

	// Delivery pacing
	ChunkLimit    int
	ChunkMinDelay time.Duration
	ChunkMaxDelay time.Duration
	ChunkGap      time.Duration

	// Handoff notifications
	EmailEnabled      bool
	SMTPHost          string
	SMTPPort          int
	SMTPUser          string
	SMTPPassword      string
	EmailFromAddress  string
	HandoffRecipients []string

	// Media archiving
	MinIOEndpoint  string
	MinIOAccessKey string
	MinIOSecretKey string
	MinIOBucket    string
	MinIOUseSSL    bool
}

const defaultPersona = `You are a friendly sales assistant for a health-benefits subscription service. ` +
	`Answer briefly and naturally, like a human typing on WhatsApp. ` +
	`Never invent prices or coverage details that are not in the provided knowledge.`

func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	smtpHost := getEnv("SMTP_HOST", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true") && smtpHost != ""

	cfg := &Config{
		Env:         getEnv("APP_ENV", "development"),
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		AsynqQueue:  getEnv("ASYNQ_QUEUE", "default"),

		CORSAllowAll: corsAllowAll,
		CORSOrigins:  corsOrigins,

		WebhookToken:    getEnv("WEBHOOK_TOKEN", ""),
		DefaultInstance: getEnv("DEFAULT_INSTANCE", ""),

		GatewayURL:     getEnv("GATEWAY_URL", ""),
		GatewayAPIKey:  getEnv("GATEWAY_API_KEY", ""),
		GatewayRateRPS: mustFloat(getEnv("GATEWAY_RATE_RPS", "2")),
		GatewayTimeout: mustDuration(getEnv("GATEWAY_TIMEOUT", "15s")),

		GenAIAPIKey:       getEnv("GENAI_API_KEY", ""),
		CompletionModel:   getEnv("COMPLETION_MODEL", "gemini-2.0-flash"),
		CompletionTimeout: mustDuration(getEnv("COMPLETION_TIMEOUT", "30s")),
		PersonaPrompt:     getEnv("PERSONA_PROMPT", defaultPersona),

		KnowledgeTopN: mustInt(getEnv("KNOWLEDGE_TOP_N", "8")),
		HistoryTurns:  mustInt(getEnv("HISTORY_TURNS", "15")),

		ChunkLimit:    mustInt(getEnv("DELIVERY_CHUNK_LIMIT", "280")),
		ChunkMinDelay: mustDuration(getEnv("DELIVERY_MIN_DELAY", "800ms")),
		ChunkMaxDelay: mustDuration(getEnv("DELIVERY_MAX_DELAY", "4s")),
		ChunkGap:      mustDuration(getEnv("DELIVERY_CHUNK_GAP", "600ms")),

		EmailEnabled:      emailEnabled,
		SMTPHost:          smtpHost,
		SMTPPort:          mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUser:          getEnv("SMTP_USER", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		EmailFromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
		HandoffRecipients: splitCSV(getEnv("HANDOFF_RECIPIENTS", "")),

		MinIOEndpoint:  getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey: getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey: getEnv("MINIO_SECRET_KEY", ""),
		MinIOBucket:    getEnv("MINIO_BUCKET", "lead-media"),
		MinIOUseSSL:    strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.EmailEnabled && len(cfg.HandoffRecipients) == 0 {
		return nil, fmt.Errorf("HANDOFF_RECIPIENTS is required when email is enabled")
	}
	if cfg.ChunkMinDelay > cfg.ChunkMaxDelay {
		return nil, fmt.Errorf("DELIVERY_MIN_DELAY cannot exceed DELIVERY_MAX_DELAY")
	}

	return cfg, nil
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
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return n
}

func mustFloat(value string) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0
	}
	return f
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
