/**
 * Configuration for the parameter extraction worker and batch CLI
 *
 * Loads configuration from environment variables; the entrypoints read
 * .env before this runs.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds pipeline configuration
type Config struct {
	// Redis configuration (queue worker mode)
	RedisURL  string
	QueueName string

	// PostgreSQL configuration; empty disables result persistence
	DatabaseURL string

	// Batch configuration
	WorkerConcurrency int
	ChunkSize         int
	ProcessingTimeout int // per-row deadline, milliseconds

	// Image acquisition
	FetchTimeout int    // milliseconds
	MaxImageSize int64  // bytes
	ImageDir     string // empty disables local image copies

	// Recognition
	OCRLanguages []string
	MaxImageSide int // longest side after the preprocessing size cap

	// Extraction; empty uses the built-in pattern table
	PatternsFile string

	// Observability
	MetricsAddr string // empty disables the metrics endpoint
	LogLevel    string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:          getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		QueueName:         getEnvOrDefault("QUEUE_NAME", "paramextract"),
		DatabaseURL:       getEnvOrDefault("DATABASE_URL", ""),
		WorkerConcurrency: getEnvAsIntOrDefault("WORKER_CONCURRENCY", 10),
		ChunkSize:         getEnvAsIntOrDefault("CHUNK_SIZE", 1000),
		ProcessingTimeout: getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 60000),  // 1 minute
		FetchTimeout:      getEnvAsIntOrDefault("FETCH_TIMEOUT", 10000),       // 10 seconds
		MaxImageSize:      getEnvAsInt64OrDefault("MAX_IMAGE_SIZE", 20971520), // 20MB
		ImageDir:          getEnvOrDefault("IMAGE_DIR", ""),
		OCRLanguages:      splitCSV(getEnvOrDefault("OCR_LANGUAGES", "eng")),
		MaxImageSide:      getEnvAsIntOrDefault("MAX_IMAGE_SIDE", 2048),
		PatternsFile:      getEnvOrDefault("PATTERNS_FILE", ""),
		MetricsAddr:       getEnvOrDefault("METRICS_ADDR", ""),
		LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.ChunkSize < 1 || c.ChunkSize > 100000 {
		return fmt.Errorf("CHUNK_SIZE must be between 1 and 100000, got %d", c.ChunkSize)
	}

	if c.ProcessingTimeout < 1000 {
		return fmt.Errorf("PROCESSING_TIMEOUT must be at least 1000ms, got %d", c.ProcessingTimeout)
	}

	if c.FetchTimeout < 100 || c.FetchTimeout > c.ProcessingTimeout {
		return fmt.Errorf("FETCH_TIMEOUT must be between 100ms and PROCESSING_TIMEOUT, got %d", c.FetchTimeout)
	}

	if c.MaxImageSize < 1024 || c.MaxImageSize > 1073741824 { // 1KB to 1GB
		return fmt.Errorf("MAX_IMAGE_SIZE must be between 1KB and 1GB, got %d", c.MaxImageSize)
	}

	if c.MaxImageSide < 64 {
		return fmt.Errorf("MAX_IMAGE_SIDE must be at least 64, got %d", c.MaxImageSide)
	}

	if len(c.OCRLanguages) == 0 {
		return fmt.Errorf("OCR_LANGUAGES must name at least one language")
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
