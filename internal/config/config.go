// Package config provides configuration management for the work tracker.
// It loads settings from environment variables with the TRACKER_ prefix,
// provides sensible defaults for all options, and optionally overlays a YAML
// file on top. File values take precedence over environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the tracker application.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	LLM       LLMConfig       `yaml:"llm"`
	Security  SecurityConfig  `yaml:"security"`
	Assistant AssistantConfig `yaml:"assistant"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 7373)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)
}

// StorageConfig contains database configuration. When PostgresDSN is set the
// postgres backend is used; otherwise SQLite at SQLitePath.
type StorageConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
	SQLitePath  string `yaml:"sqlite_path"` // default: ./data/tracker.db
}

// LLMConfig contains completion and embedding provider configuration.
type LLMConfig struct {
	APIKey             string        `yaml:"api_key"`             // OpenRouter API key
	BaseURL            string        `yaml:"base_url"`            // default: https://openrouter.ai/api/v1
	Model              string        `yaml:"model"`               // completion model (default: openai/gpt-4o-mini)
	EmbeddingModel     string        `yaml:"embedding_model"`     // default: openai/text-embedding-3-small
	EmbeddingDimension int           `yaml:"embedding_dimension"` // default: 1536
	RequestsPerSecond  float64       `yaml:"requests_per_second"` // default: 5
	Timeout            time.Duration `yaml:"timeout"`             // default: 60s
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	Mode            string   `yaml:"mode"`      // development, production (default: development)
	APIToken        string   `yaml:"api_token"` // bearer token required in production mode
	AllowedSessions []string `yaml:"allowed_sessions"`
	WebhookSecret   string   `yaml:"webhook_secret"`
}

// AssistantConfig contains conversation and scheduling settings.
type AssistantConfig struct {
	Timezone      string        `yaml:"timezone"`        // IANA name (default: UTC)
	MaxHistory    int           `yaml:"max_history"`     // dialogue turns kept per session (default: 5)
	PendingTTL    time.Duration `yaml:"pending_ttl"`     // confirmation window (default: 5m)
	CheckInStart  int           `yaml:"check_in_start"`  // hour, inclusive (default: 10)
	CheckInEnd    int           `yaml:"check_in_end"`    // hour, exclusive (default: 19)
	SummaryAt     string        `yaml:"summary_at"`      // HH:MM local time (default: 23:30)
	Currency      string        `yaml:"currency"`        // default currency for expense totals (default: INR)
	EmbedCacheCap int           `yaml:"embed_cache_cap"` // embedding LRU capacity (default: 512)
}

// Load builds a config from environment variables, then overlays the YAML
// file at path when path is non-empty.
func Load(path string) (*Config, error) {
	cfg := buildBaseConfig()
	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Assistant.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: invalid timezone %q: %w", c.Assistant.Timezone, err)
	}
	return loc, nil
}

// applyFile overlays YAML values onto the config. Only keys present in the
// file are changed; yaml.Unmarshal leaves absent fields untouched.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid port %d", c.Server.Port)
	}
	if c.LLM.EmbeddingDimension <= 0 {
		return fmt.Errorf("config: embedding dimension must be positive")
	}
	if c.Security.Mode != "development" && c.Security.Mode != "production" {
		return fmt.Errorf("config: unknown security mode %q", c.Security.Mode)
	}
	if c.Security.Mode == "production" && c.Security.APIToken == "" {
		return fmt.Errorf("config: production mode requires an API token")
	}
	if _, err := time.Parse("15:04", c.Assistant.SummaryAt); err != nil {
		return fmt.Errorf("config: summary_at must be HH:MM: %w", err)
	}
	if c.Assistant.CheckInStart < 0 || c.Assistant.CheckInEnd > 24 || c.Assistant.CheckInStart >= c.Assistant.CheckInEnd {
		return fmt.Errorf("config: invalid check-in window [%d, %d)", c.Assistant.CheckInStart, c.Assistant.CheckInEnd)
	}
	return nil
}

// buildBaseConfig constructs a Config with values from environment variables
// and defaults.
func buildBaseConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("TRACKER_PORT", 7373),
			Host: getEnv("TRACKER_HOST", "127.0.0.1"),
		},
		Storage: StorageConfig{
			PostgresDSN: getEnv("TRACKER_POSTGRES_DSN", ""),
			SQLitePath:  getEnv("TRACKER_SQLITE_PATH", "./data/tracker.db"),
		},
		LLM: LLMConfig{
			APIKey:             getEnv("TRACKER_OPENROUTER_API_KEY", ""),
			BaseURL:            getEnv("TRACKER_OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
			Model:              getEnv("TRACKER_MODEL", "openai/gpt-4o-mini"),
			EmbeddingModel:     getEnv("TRACKER_EMBEDDING_MODEL", "openai/text-embedding-3-small"),
			EmbeddingDimension: getEnvInt("TRACKER_EMBEDDING_DIMENSION", 1536),
			RequestsPerSecond:  getEnvFloat("TRACKER_REQUESTS_PER_SECOND", 5),
			Timeout:            getEnvDuration("TRACKER_LLM_TIMEOUT", 60*time.Second),
		},
		Security: SecurityConfig{
			Mode:          getEnv("TRACKER_SECURITY_MODE", "development"),
			APIToken:      getEnv("TRACKER_API_TOKEN", ""),
			WebhookSecret: getEnv("TRACKER_WEBHOOK_SECRET", ""),
		},
		Assistant: AssistantConfig{
			Timezone:      getEnv("TRACKER_TIMEZONE", "UTC"),
			MaxHistory:    getEnvInt("TRACKER_MAX_HISTORY", 5),
			PendingTTL:    getEnvDuration("TRACKER_PENDING_TTL", 5*time.Minute),
			CheckInStart:  getEnvInt("TRACKER_CHECK_IN_START", 10),
			CheckInEnd:    getEnvInt("TRACKER_CHECK_IN_END", 19),
			SummaryAt:     getEnv("TRACKER_SUMMARY_AT", "23:30"),
			Currency:      getEnv("TRACKER_CURRENCY", "INR"),
			EmbedCacheCap: getEnvInt("TRACKER_EMBED_CACHE_CAP", 512),
		},
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default
// value. If the variable exists but cannot be parsed, the default is used.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default
// value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (Go syntax, e.g.
// "90s") or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
