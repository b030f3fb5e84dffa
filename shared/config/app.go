package config

import (
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// AppConfig is the settings shared by every service
type AppConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWKSURL     string
	TokenTTL    time.Duration
	TrialPeriod time.Duration

	// BootstrapAdminEmail may act as superadmin until the first real one exists
	BootstrapAdminEmail string

	MercadoPagoBaseURL       string
	MercadoPagoWebhookSecret string
	ProcessorTimeout         time.Duration

	ExportBucket string
	AWSRegion    string

	KafkaBroker string
	AuditTopic  string

	RedisEnabled bool
	AutoMigrate  bool
	LogLevel     string
}

// LoadEnv reads a .env file when present
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}
}

// LoadAppConfig builds the shared configuration from the environment
func LoadAppConfig() *AppConfig {
	return &AppConfig{
		JWTSecret:                getEnv("JWT_SECRET", ""),
		JWTIssuer:                getEnv("JWT_ISSUER", "admin-console"),
		JWKSURL:                  getEnv("JWT_JWKS_URL", ""),
		TokenTTL:                 getDuration("TOKEN_TTL", 8*time.Hour),
		TrialPeriod:              time.Duration(getInt("TRIAL_DAYS", 14)) * 24 * time.Hour,
		BootstrapAdminEmail:      strings.TrimSpace(getEnv("BOOTSTRAP_ADMIN_EMAIL", "")),
		MercadoPagoBaseURL:       getEnv("MERCADOPAGO_BASE_URL", "https://api.mercadopago.com"),
		MercadoPagoWebhookSecret: getEnv("MERCADOPAGO_WEBHOOK_SECRET", ""),
		ProcessorTimeout:         getDuration("PROCESSOR_TIMEOUT", 10*time.Second),
		ExportBucket:             getEnv("EXPORT_BUCKET", "admin-console-exports"),
		AWSRegion:                getEnv("AWS_REGION", "us-east-1"),
		KafkaBroker:              getEnv("KAFKA_BROKER", "localhost:9092"),
		AuditTopic:               getEnv("AUDIT_TOPIC", "audit-events"),
		RedisEnabled:             getEnv("REDIS_ENABLED", "true") == "true",
		AutoMigrate:              getEnv("AUTO_MIGRATE", "true") == "true",
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
	}
}

// ConfigureLogging applies the configured level and JSON output
func (c *AppConfig) ConfigureLogging() {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// ServicePort returns the port for a service from <NAME>_SERVICE_PORT
func ServicePort(envKey, fallback string) string {
	return getEnv(envKey, fallback)
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}
