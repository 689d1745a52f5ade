// Package config provides configuration management for Engram.
// It loads settings from environment variables with the ENGRAM_ prefix
// and provides sensible defaults for all configuration options.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/engramdev/engram/internal/embedding"
)

// Config holds all configuration settings for the Engram memory engine.
type Config struct {
	Storage   StorageConfig
	Embedding EmbeddingConfig
	Registry  RegistryConfig
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	Engine      string // Storage engine: sqlite, postgres (default: sqlite)
	DataPath    string // Path to the sqlite data directory (default: ./data)
	PostgresDSN string // Postgres connection string (required when Engine is postgres)
}

// EmbeddingConfig contains embedding provider configuration.
type EmbeddingConfig struct {
	Provider          string  // Embedding provider: ollama, openai (default: ollama)
	BaseURL           string  // Provider endpoint override
	Model             string  // Embedding model name (provider default when empty)
	APIKey            string  // API key for hosted providers
	Dimension         int     // Expected vector dimension (provider default when 0)
	TimeoutSeconds    int     // Per-request timeout in seconds (default: 30)
	CacheSize         int     // LRU embedding cache capacity, 0 disables (default: 1024)
	RequestsPerSecond float64 // Client-side rate limit, 0 disables (default: 0)
	Burst             int     // Rate limiter burst (default: 1)
}

// RegistryConfig locates the memory type definitions.
type RegistryConfig struct {
	TypesFile string // Path to the YAML type definition file (default: ./types.yaml)
	Watch     bool   // Reload type definitions when the file changes (default: false)
}

// LoadConfig loads configuration from environment variables with sensible
// defaults. All environment variables use the ENGRAM_ prefix.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Storage: StorageConfig{
			Engine:      getEnv("ENGRAM_STORAGE_ENGINE", "sqlite"),
			DataPath:    getEnv("ENGRAM_DATA_PATH", "./data"),
			PostgresDSN: getEnv("ENGRAM_POSTGRES_DSN", ""),
		},
		Embedding: EmbeddingConfig{
			Provider:          getEnv("ENGRAM_EMBEDDING_PROVIDER", "ollama"),
			BaseURL:           getEnv("ENGRAM_EMBEDDING_URL", ""),
			Model:             getEnv("ENGRAM_EMBEDDING_MODEL", ""),
			APIKey:            getEnv("ENGRAM_EMBEDDING_API_KEY", ""),
			Dimension:         getEnvInt("ENGRAM_EMBEDDING_DIMENSION", 0),
			TimeoutSeconds:    getEnvInt("ENGRAM_EMBEDDING_TIMEOUT_SECONDS", 30),
			CacheSize:         getEnvInt("ENGRAM_EMBEDDING_CACHE_SIZE", 1024),
			RequestsPerSecond: getEnvFloat("ENGRAM_EMBEDDING_RPS", 0),
			Burst:             getEnvInt("ENGRAM_EMBEDDING_BURST", 1),
		},
		Registry: RegistryConfig{
			TypesFile: getEnv("ENGRAM_TYPES_FILE", "./types.yaml"),
			Watch:     getEnvBool("ENGRAM_TYPES_WATCH", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that env parsing cannot express.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unsupported storage engine %q", c.Storage.Engine)
	}
	if c.Storage.Engine == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("config: ENGRAM_POSTGRES_DSN is required for the postgres engine")
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		return fmt.Errorf("config: embedding timeout must be positive, got %d", c.Embedding.TimeoutSeconds)
	}
	if c.Embedding.CacheSize < 0 {
		return fmt.Errorf("config: embedding cache size must be non-negative, got %d", c.Embedding.CacheSize)
	}
	return nil
}

// ProviderSettings maps the embedding section onto the provider factory's
// input.
func (c *Config) ProviderSettings() embedding.ProviderSettings {
	return embedding.ProviderSettings{
		Provider:          c.Embedding.Provider,
		BaseURL:           c.Embedding.BaseURL,
		Model:             c.Embedding.Model,
		APIKey:            c.Embedding.APIKey,
		Dimension:         c.Embedding.Dimension,
		Timeout:           time.Duration(c.Embedding.TimeoutSeconds) * time.Second,
		CacheSize:         c.Embedding.CacheSize,
		RequestsPerSecond: c.Embedding.RequestsPerSecond,
		Burst:             c.Embedding.Burst,
	}
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns a default value.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value.
// It recognizes "true", "1", "yes" as true and "false", "0", "no" as false (case-insensitive).
// If the environment variable exists but cannot be parsed as a boolean,
// it returns the default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch value {
		case "true", "1", "yes", "True", "TRUE", "Yes", "YES":
			return true
		case "false", "0", "no", "False", "FALSE", "No", "NO":
			return false
		}
	}
	return defaultValue
}
