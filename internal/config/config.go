package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/creatrr/competitor-tracker-go/pkg/errors"
)

type Config struct {
	Postgres  PostgresConfig
	Redis     RedisConfig
	YouTube   YouTubeConfig
	Gemini    GeminiConfig
	OpenAI    OpenAIConfig
	Discovery DiscoveryConfig
	Jobs      JobsConfig
	Server    ServerConfig
	Logging   LoggingConfig
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type YouTubeConfig struct {
	APIKey string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type OpenAIConfig struct {
	APIKey         string
	Model          string
	EnableFallback bool
}

type DiscoveryConfig struct {
	Mode               string // "polling" or "websub"
	WebSubCallbackURL  string
	WebSubLeaseSeconds int
}

type JobsConfig struct {
	PollingInterval    time.Duration
	SnapshotInterval   time.Duration
	BaselineInterval   time.Duration
	CompletionInterval time.Duration
	TrendInterval      time.Duration
}

type ServerConfig struct {
	Port int
}

type LoggingConfig struct {
	Level string
	File  string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getEnvInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", "tracker"),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			Database: getEnv("POSTGRES_DB", "tracker"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		YouTube: YouTubeConfig{
			APIKey: getEnv("YOUTUBE_API_KEY", ""),
		},
		Gemini: GeminiConfig{
			APIKey: getEnv("GEMINI_API_KEY", ""),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		OpenAI: OpenAIConfig{
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Model:          getEnv("OPENAI_MODEL", "gpt-5-mini"),
			EnableFallback: getEnvBool("OPENAI_ENABLE_FALLBACK", true),
		},
		Discovery: DiscoveryConfig{
			Mode:               getEnv("DISCOVERY_MODE", "polling"),
			WebSubCallbackURL:  getEnv("WEBSUB_CALLBACK_URL", ""),
			WebSubLeaseSeconds: getEnvInt("WEBSUB_LEASE_SECONDS", 10*24*60*60),
		},
		Jobs: JobsConfig{
			PollingInterval:    time.Duration(getEnvInt("POLLING_INTERVAL_MINUTES", 15)) * time.Minute,
			SnapshotInterval:   time.Duration(getEnvInt("SNAPSHOT_WORKER_INTERVAL_MINUTES", 5)) * time.Minute,
			BaselineInterval:   time.Duration(getEnvInt("BASELINE_UPDATE_HOURS", 12)) * time.Hour,
			CompletionInterval: time.Duration(getEnvInt("COMPLETION_CHECK_HOURS", 1)) * time.Hour,
			TrendInterval:      time.Duration(getEnvInt("TREND_DETECTION_HOURS", 12)) * time.Hour,
		},
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8080),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			File:  getEnv("LOG_FILE", ""),
		},
	}

	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, errors.NewConfigError(problems)
	}

	return cfg, nil
}

// Validate returns the full list of missing or invalid settings so startup
// can report them all at once.
func (c *Config) Validate() []string {
	var problems []string

	if c.YouTube.APIKey == "" {
		problems = append(problems, "YOUTUBE_API_KEY is missing")
	}
	if c.Gemini.APIKey == "" {
		problems = append(problems, "GEMINI_API_KEY is missing")
	}
	if c.Postgres.Password == "" {
		problems = append(problems, "POSTGRES_PASSWORD is missing")
	}
	if c.Discovery.Mode != "polling" && c.Discovery.Mode != "websub" {
		problems = append(problems, fmt.Sprintf("DISCOVERY_MODE must be 'polling' or 'websub', got '%s'", c.Discovery.Mode))
	}
	if c.Discovery.Mode == "websub" && c.Discovery.WebSubCallbackURL == "" {
		problems = append(problems, "WEBSUB_CALLBACK_URL is required when DISCOVERY_MODE=websub")
	}

	return problems
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
