package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	SMTP     SMTPConfig
	FX       FXConfig
	Settings SettlementConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port        string
	CertFile    string
	KeyFile     string
	JWTSecret   string
	CorsOrigins []string
}

type DatabaseConfig struct {
	User     string
	Password string
	Name     string
	Host     string
	Port     string
}

type SMTPConfig struct {
	Email    string
	Password string
	Host     string
	Port     int
}

type FXConfig struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	MaxRetries      int
	BreakerCooldown time.Duration
}

type LogConfig struct {
	Level string
	Env   string
}

type SettlementConfig struct {
	// ConfirmationStore is "mysql" or "memory".
	ConfirmationStore string
}

// Load reads the configuration from the environment. Call godotenv.Load
// first to pick up a local .env file.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", ":3000"),
			CertFile:    os.Getenv("CERT_FILE"),
			KeyFile:     os.Getenv("KEY_FILE"),
			JWTSecret:   os.Getenv("JWT_SECRET"),
			CorsOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		},
		Database: DatabaseConfig{
			User:     os.Getenv("DB_USER"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     os.Getenv("DB_NAME"),
			Host:     getEnv("DB_HOST", "127.0.0.1"),
			Port:     getEnv("DB_PORT", "3306"),
		},
		SMTP: SMTPConfig{
			Email:    os.Getenv("SMTP_EMAIL"),
			Password: os.Getenv("SMTP_PASS"),
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getInt("SMTP_PORT", 587),
		},
		FX: FXConfig{
			BaseURL:         os.Getenv("FX_API_URL"),
			APIKey:          os.Getenv("FX_API_KEY"),
			Timeout:         time.Duration(getInt("FX_TIMEOUT_SECONDS", 10)) * time.Second,
			MaxRetries:      getInt("FX_MAX_RETRIES", 3),
			BreakerCooldown: time.Duration(getInt("FX_BREAKER_COOLDOWN_SECONDS", 60)) * time.Second,
		},
		Settings: SettlementConfig{
			ConfirmationStore: getEnv("CONFIRMATION_STORE", "mysql"),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			Env:   getEnv("APP_ENV", "development"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
