// Package config loads application configuration from environment variables.
// All variables use the DRILL_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Cache      CacheConfig
	Content    ContentConfig
	Difficulty DifficultyConfig
	Progress   ProgressConfig
	Log        LogConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int
	Host string
	// AllowedOrigins are the websocket origin patterns accepted by the live feed.
	AllowedOrigins []string
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL keeps
// progress in memory.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings. An empty URL keeps the
// session-scoped content store in memory.
type CacheConfig struct {
	URL        string
	SessionTTL time.Duration
}

// ContentConfig locates the per-level content files. BaseURL wins over Dir.
type ContentConfig struct {
	BaseURL      string
	Dir          string
	FetchTimeout time.Duration
	// Preload fetches every level at startup.
	Preload bool
}

// DifficultyConfig holds adaptive difficulty parameters.
type DifficultyConfig struct {
	MinOptions       int
	MaxOptions       int
	StreakPerLevel   int
	WrongsToDecrease int
}

// ProgressConfig identifies whose progress is recorded.
type ProgressConfig struct {
	LearnerID string
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with DRILL_ prefix.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("DRILL_SERVER_PORT", 8080),
			Host:           envStr("DRILL_SERVER_HOST", "0.0.0.0"),
			AllowedOrigins: envList("DRILL_SERVER_ALLOWED_ORIGINS", nil),
		},
		Database: DatabaseConfig{
			URL:      envStr("DRILL_DATABASE_URL", ""),
			MaxConns: envInt("DRILL_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("DRILL_DATABASE_MIN_CONNS", 2),
		},
		Cache: CacheConfig{
			URL:        envStr("DRILL_CACHE_URL", ""),
			SessionTTL: envDuration("DRILL_CACHE_SESSION_TTL", 24*time.Hour),
		},
		Content: ContentConfig{
			BaseURL:      envStr("DRILL_CONTENT_BASE_URL", ""),
			Dir:          envStr("DRILL_CONTENT_DIR", "./public"),
			FetchTimeout: envDuration("DRILL_CONTENT_FETCH_TIMEOUT", 10*time.Second),
			Preload:      envBool("DRILL_CONTENT_PRELOAD", false),
		},
		Difficulty: DifficultyConfig{
			MinOptions:       envInt("DRILL_DIFFICULTY_MIN_OPTIONS", 3),
			MaxOptions:       envInt("DRILL_DIFFICULTY_MAX_OPTIONS", 6),
			StreakPerLevel:   envInt("DRILL_DIFFICULTY_STREAK_PER_LEVEL", 3),
			WrongsToDecrease: envInt("DRILL_DIFFICULTY_WRONGS_TO_DECREASE", 2),
		},
		Progress: ProgressConfig{
			LearnerID: envStr("DRILL_PROGRESS_LEARNER_ID", "local"),
		},
		Log: LogConfig{
			Level:  envStr("DRILL_LOG_LEVEL", "info"),
			Format: envStr("DRILL_LOG_FORMAT", "json"),
		},
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("DRILL_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Content.BaseURL == "" && c.Content.Dir == "" {
		return fmt.Errorf("one of DRILL_CONTENT_BASE_URL or DRILL_CONTENT_DIR is required")
	}

	d := c.Difficulty
	if d.MinOptions < 2 || d.MaxOptions < d.MinOptions {
		return fmt.Errorf("difficulty options must satisfy 2 <= min <= max, got min=%d max=%d", d.MinOptions, d.MaxOptions)
	}
	if d.StreakPerLevel < 1 || d.WrongsToDecrease < 1 {
		return fmt.Errorf("DRILL_DIFFICULTY_STREAK_PER_LEVEL and DRILL_DIFFICULTY_WRONGS_TO_DECREASE must be positive")
	}

	if c.Progress.LearnerID == "" {
		return fmt.Errorf("DRILL_PROGRESS_LEARNER_ID is required")
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("DRILL_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	return nil
}

// UsesPostgres reports whether progress is persisted in PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.Database.URL != ""
}

// UsesRedis reports whether the session-scoped content store is Redis.
func (c *Config) UsesRedis() bool {
	return c.Cache.URL != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
