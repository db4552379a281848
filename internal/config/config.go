package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds the process configuration, loaded from the environment.
type Config struct {
	AppEnv           string
	Port             string
	WebsocketPort    string
	TelegramBotToken string
	JWTSecret        string
	DatabaseURL      string
	RedisAddr        string
	DatabaseConfig   DatabaseConfig
	CloudinaryConfig CloudinaryConfig
	TradeConfig      TradeConfig
	NotifierConfig   NotifierConfig
}

// DatabaseConfig holds the postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// CloudinaryConfig holds the image upload settings.
type CloudinaryConfig struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string
	UploadFolder string
}

// TradeConfig holds the negotiation-core settings.
type TradeConfig struct {
	// ServiceHourlyRate values one pledged service hour, minor currency units.
	ServiceHourlyRate int64
	// CashCeiling bounds a single cash line, minor currency units.
	CashCeiling int64
	// PendingTTL is how long a proposal stays open before the sweep expires it.
	PendingTTL time.Duration
	// SweepInterval is how often the expiry sweep runs.
	SweepInterval time.Duration
}

// NotifierConfig holds the lifecycle event delivery settings.
type NotifierConfig struct {
	WebhookURL string
}

// Load reads configuration from .env and the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("no .env file found, using environment variables")
	}

	dbConfig := DatabaseConfig{
		Host:     getEnv("PGHOST", "localhost"),
		Port:     getEnv("PGPORT", "5432"),
		User:     getEnv("PGUSER", "swapdeck_user"),
		Password: getEnv("PGPASSWORD", "swapdeck_pass"),
		Name:     getEnv("PGDATABASE", "swapdeck"),
		SSLMode:  getEnv("PGSSLMODE", "disable"),
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		dbURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbConfig.User, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name, dbConfig.SSLMode)
	}

	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "production"),
		Port:             getEnv("PORT", "8080"),
		WebsocketPort:    getEnv("WS_PORT", "8081"),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		JWTSecret:        getEnv("JWT_SECRET", ""),
		DatabaseURL:      dbURL,
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		DatabaseConfig:   dbConfig,
		CloudinaryConfig: CloudinaryConfig{
			CloudName:    getEnv("CLOUDINARY_CLOUD_NAME", ""),
			APIKey:       getEnv("CLOUDINARY_API_KEY", ""),
			APISecret:    getEnv("CLOUDINARY_API_SECRET", ""),
			UploadPreset: getEnv("CLOUDINARY_UPLOAD_PRESET", "swapdeck_mvp"),
			UploadFolder: getEnv("CLOUDINARY_UPLOAD_FOLDER", "swapdeck"),
		},
		TradeConfig: TradeConfig{
			ServiceHourlyRate: getEnvInt64("TRADE_SERVICE_HOURLY_RATE", 1500),
			CashCeiling:       getEnvInt64("TRADE_CASH_CEILING", 100_000_000),
			PendingTTL:        getEnvDuration("TRADE_PENDING_TTL", 7*24*time.Hour),
			SweepInterval:     getEnvDuration("TRADE_SWEEP_INTERVAL", 10*time.Minute),
		},
		NotifierConfig: NotifierConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if cfg.TelegramBotToken == "" || cfg.JWTSecret == "" {
		logrus.Fatal("TELEGRAM_BOT_TOKEN and JWT_SECRET must be set")
	}

	return cfg
}

// getEnv returns the environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logrus.WithField("key", key).Warn("invalid integer in environment, using default")
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logrus.WithField("key", key).Warn("invalid duration in environment, using default")
		return defaultValue
	}
	return parsed
}
