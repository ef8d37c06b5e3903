package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Extractor ExtractorConfig
	Store     StoreConfig
	Teams     TeamsConfig
	Media     MediaConfig
}

// ExtractorConfig holds extraction-service configuration
type ExtractorConfig struct {
	Model       string
	APIKey      string
	Temperature float32
	Timeout     time.Duration

	// HazardPhrases overrides the built-in contextual guideline list when
	// non-empty.
	HazardPhrases []string
}

// StoreConfig holds committed-entry store configuration
type StoreConfig struct {
	Driver          string // "sqlite" | "postgres" | "memory"
	SQLitePath      string
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	DialTimeout     time.Duration
}

// TeamsConfig holds known-teams registry configuration
type TeamsConfig struct {
	RosterPath string
}

// MediaConfig holds media preprocessing configuration
type MediaConfig struct {
	FFmpeg        string
	OutputDir     string
	MaxVideoBytes int64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Extractor: ExtractorConfig{
			Model:         getEnv("GEMINI_MODEL", "gemini-1.5-pro"),
			APIKey:        getEnv("GEMINI_API_KEY", ""),
			Temperature:   getEnvAsFloat32("GEMINI_TEMPERATURE", 0.0),
			Timeout:       getEnvAsDuration("EXTRACTION_TIMEOUT", 45*time.Second),
			HazardPhrases: getEnvAsList("HAZARD_GUIDELINES"),
		},
		Store: StoreConfig{
			Driver:          getEnv("STORE_DRIVER", "sqlite"),
			SQLitePath:      getEnv("SQLITE_PATH", "./sitelog.db"),
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Teams: TeamsConfig{
			RosterPath: getEnv("TEAM_ROSTER_PATH", ""),
		},
		Media: MediaConfig{
			FFmpeg:        getEnv("FFMPEG_BIN", "ffmpeg"),
			OutputDir:     getEnv("MEDIA_OUTPUT_DIR", "./tmp"),
			MaxVideoBytes: getEnvAsInt64("MEDIA_MAX_VIDEO_BYTES", 25*1024*1024),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Extractor.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "GEMINI_API_KEY is required", ErrInvalidInput)
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return NewAppError("CONFIG_ERROR", "SQLITE_PATH is required for the sqlite store", ErrInvalidInput)
		}
	case "postgres":
		if c.Store.DSN == "" {
			return NewAppError("CONFIG_ERROR", "DB_URL is required for the postgres store", ErrInvalidInput)
		}
	case "memory":
	default:
		return NewAppError("CONFIG_ERROR", "STORE_DRIVER must be sqlite, postgres or memory", ErrInvalidInput)
	}
	return nil
}
