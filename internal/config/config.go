// Package config loads application configuration from the environment.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string
	LogLevel    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	TTSModel      string
	TTSVoice      string

	GraphBaseURL    string
	TelegramBaseURL string

	// PublicBaseURL is the externally reachable base for serving stored
	// files to channel providers.
	PublicBaseURL string

	StorageDir string

	DefaultPlanCode string

	RenewalLookaheadDays int
	RenewalInterval      string
}

// Load reads configuration from environment variables and an optional .env file.
func Load() Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_SERVICE", "chatly")
	v.SetDefault("APP_VERSION", "0.1.0")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("DATABASE_TYPE", "postgres")
	v.SetDefault("DATABASE_HOST", "localhost")
	v.SetDefault("DATABASE_PORT", "5432")
	v.SetDefault("DATABASE_NAME", "chatly")
	v.SetDefault("DATABASE_USER", "postgres")
	v.SetDefault("DATABASE_PASSWORD", "")
	v.SetDefault("DATABASE_SSLMODE", "disable")
	v.SetDefault("DATABASE_MAX_IDLE_CONN", 5)
	v.SetDefault("DATABASE_MAX_OPEN_CONN", 20)
	v.SetDefault("DATABASE_CONN_MAX_LIFETIME", 3600)
	v.SetDefault("DATABASE_CONN_MAX_IDLE_TIME", 600)

	v.SetDefault("OPENAI_BASE_URL", "https://api.openai.com/v1")
	v.SetDefault("OPENAI_TTS_MODEL", "tts-1")
	v.SetDefault("OPENAI_TTS_VOICE", "alloy")

	v.SetDefault("STORAGE_DIR", "storage")
	v.SetDefault("RENEWAL_LOOKAHEAD_DAYS", 3)
	v.SetDefault("RENEWAL_INTERVAL", "1h")

	return Config{
		AppName:     v.GetString("APP_SERVICE"),
		AppVersion:  v.GetString("APP_VERSION"),
		Environment: v.GetString("ENVIRONMENT"),
		HTTPAddr:    v.GetString("HTTP_ADDR"),
		LogLevel:    v.GetString("LOG_LEVEL"),

		DBType:            v.GetString("DATABASE_TYPE"),
		DBHost:            v.GetString("DATABASE_HOST"),
		DBPort:            v.GetString("DATABASE_PORT"),
		DBName:            v.GetString("DATABASE_NAME"),
		DBUser:            v.GetString("DATABASE_USER"),
		DBPassword:        v.GetString("DATABASE_PASSWORD"),
		DBSSLMode:         v.GetString("DATABASE_SSLMODE"),
		DBMaxIdleConn:     v.GetInt("DATABASE_MAX_IDLE_CONN"),
		DBMaxOpenConn:     v.GetInt("DATABASE_MAX_OPEN_CONN"),
		DBConnMaxLifetime: v.GetInt("DATABASE_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTime: v.GetInt("DATABASE_CONN_MAX_IDLE_TIME"),

		RedisAddr:     strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword: v.GetString("REDIS_PASSWORD"),

		OpenAIAPIKey:  strings.TrimSpace(v.GetString("OPENAI_API_KEY")),
		OpenAIBaseURL: v.GetString("OPENAI_BASE_URL"),
		TTSModel:      v.GetString("OPENAI_TTS_MODEL"),
		TTSVoice:      v.GetString("OPENAI_TTS_VOICE"),

		GraphBaseURL:    v.GetString("GRAPH_BASE_URL"),
		TelegramBaseURL: v.GetString("TELEGRAM_BASE_URL"),
		PublicBaseURL:   strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),

		StorageDir: v.GetString("STORAGE_DIR"),

		DefaultPlanCode: strings.TrimSpace(v.GetString("DEFAULT_PLAN_CODE")),

		RenewalLookaheadDays: v.GetInt("RENEWAL_LOOKAHEAD_DAYS"),
		RenewalInterval:      v.GetString("RENEWAL_INTERVAL"),
	}
}
