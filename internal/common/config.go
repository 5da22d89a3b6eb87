package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	Backend BackendConfig `toml:"backend"`
	Poll    PollConfig    `toml:"poll"`
	Store   StoreConfig   `toml:"store"`
	Queue   QueueConfig   `toml:"queue"`
}

// BackendConfig holds extraction backend configuration
type BackendConfig struct {
	BaseURL string `toml:"base_url"`
	Token   string `toml:"token"`
	// UploadTimeout bounds one submission end to end. Drawings are OCR-scale
	// uploads, so this is far longer than an ordinary request timeout.
	UploadTimeout  time.Duration `toml:"upload_timeout"`
	StatusTimeout  time.Duration `toml:"status_timeout"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

// PollConfig holds job status poller configuration
type PollConfig struct {
	Interval    time.Duration `toml:"interval"`
	MaxAttempts int           `toml:"max_attempts"`
}

// StoreConfig holds profile store and history store configuration
type StoreConfig struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	ProfileScope  string `toml:"profile_scope"`
	HistoryPath   string `toml:"history_path"`
}

// QueueConfig holds async session queue configuration
type QueueConfig struct {
	Workers int `toml:"workers"`
	Size    int `toml:"size"`
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL:        getEnv("BACKEND_URL", ""),
			Token:          getEnv("BACKEND_TOKEN", ""),
			UploadTimeout:  getEnvAsDuration("BACKEND_UPLOAD_TIMEOUT", 30*time.Minute),
			StatusTimeout:  getEnvAsDuration("BACKEND_STATUS_TIMEOUT", 15*time.Second),
			RequestTimeout: getEnvAsDuration("BACKEND_REQUEST_TIMEOUT", 45*time.Second),
		},
		Poll: PollConfig{
			Interval:    getEnvAsDuration("POLL_INTERVAL", 5*time.Second),
			MaxAttempts: getEnvAsInt("POLL_MAX_ATTEMPTS", 60),
		},
		Store: StoreConfig{
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			ProfileScope:  getEnv("PROFILE_SCOPE", "default"),
			HistoryPath:   getEnv("HISTORY_DB_PATH", "./linelist-history.db"),
		},
		Queue: QueueConfig{
			Workers: getEnvAsInt("QUEUE_WORKERS", 2),
			Size:    getEnvAsInt("QUEUE_SIZE", 64),
		},
	}
}

// LoadConfigFile overlays values from a TOML file onto cfg. Keys absent from
// the file keep their current values.
func LoadConfigFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "BACKEND_URL is required", ErrInvalidInput)
	}
	if c.Poll.Interval <= 0 {
		return NewAppError("CONFIG_ERROR", "POLL_INTERVAL must be positive", ErrInvalidInput)
	}
	if c.Poll.MaxAttempts <= 0 {
		return NewAppError("CONFIG_ERROR", "POLL_MAX_ATTEMPTS must be positive", ErrInvalidInput)
	}
	if c.Backend.UploadTimeout <= c.Backend.RequestTimeout {
		return NewAppError("CONFIG_ERROR", "upload timeout must exceed the ordinary request timeout", ErrInvalidInput)
	}
	return nil
}
