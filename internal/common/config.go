package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	API    APIConfig
	Poller PollerConfig
	Files  FilesConfig
}

// APIConfig holds GeoCarbon API connection settings
type APIConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

// PollerConfig holds the retry loop settings for the result poller
type PollerConfig struct {
	MaxAttempts int
	RetryDelay  time.Duration
}

// FilesConfig holds the default directories for flat-file input and output
type FilesConfig struct {
	InputDir    string
	OutputDir   string
	DownloadDir string
}

// LoadConfig loads configuration from environment variables. A .env file in
// the working directory is read first; a missing one is not an error.
func LoadConfig() *Config {
	_ = godotenv.Load()

	return &Config{
		API: APIConfig{
			BaseURL:     getEnv("API_BASE_URL", ""),
			AccessToken: getEnv("ACCESS_TOKEN", ""),
			Timeout:     getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),
		},
		Poller: PollerConfig{
			MaxAttempts: getEnvAsInt("POLL_MAX_ATTEMPTS", 10),
			RetryDelay:  getEnvAsDuration("POLL_RETRY_DELAY", time.Minute),
		},
		Files: FilesConfig{
			InputDir:    getEnv("INPUT_DIR", "input"),
			OutputDir:   getEnv("OUTPUT_DIR", "output"),
			DownloadDir: getEnv("DOWNLOAD_DIR", "download"),
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
	if c.API.AccessToken == "" {
		return NewAppError("CONFIG_ERROR", "ACCESS_TOKEN is required", ErrInvalidInput)
	}
	if c.API.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "API_BASE_URL is required", ErrInvalidInput)
	}
	if c.Poller.MaxAttempts <= 0 {
		return NewAppError("CONFIG_ERROR", "POLL_MAX_ATTEMPTS must be positive", ErrInvalidInput)
	}
	return nil
}
