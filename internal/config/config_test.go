package config_test

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramdev/engram/internal/config"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, key := range []string{
		"ENGRAM_STORAGE_ENGINE", "ENGRAM_DATA_PATH", "ENGRAM_POSTGRES_DSN",
		"ENGRAM_EMBEDDING_PROVIDER", "ENGRAM_EMBEDDING_CACHE_SIZE",
		"ENGRAM_TYPES_FILE", "ENGRAM_TYPES_WATCH",
	} {
		_ = os.Unsetenv(key)
	}

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Storage.Engine)
	assert.Equal(t, "./data", cfg.Storage.DataPath)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, 1024, cfg.Embedding.CacheSize)
	assert.Equal(t, 30, cfg.Embedding.TimeoutSeconds)
	assert.Equal(t, "./types.yaml", cfg.Registry.TypesFile)
	assert.False(t, cfg.Registry.Watch)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ENGRAM_STORAGE_ENGINE", "postgres")
	t.Setenv("ENGRAM_POSTGRES_DSN", "postgres://localhost/engram?sslmode=disable")
	t.Setenv("ENGRAM_EMBEDDING_PROVIDER", "openai")
	t.Setenv("ENGRAM_EMBEDDING_API_KEY", "sk-test")
	t.Setenv("ENGRAM_EMBEDDING_RPS", "2.5")
	t.Setenv("ENGRAM_TYPES_WATCH", "true")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Engine)
	assert.Equal(t, "postgres://localhost/engram?sslmode=disable", cfg.Storage.PostgresDSN)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, 2.5, cfg.Embedding.RequestsPerSecond)
	assert.True(t, cfg.Registry.Watch)
}

func TestLoadConfig_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("ENGRAM_STORAGE_ENGINE", "postgres")
	t.Setenv("ENGRAM_POSTGRES_DSN", "")

	_, err := config.LoadConfig()
	assert.Error(t, err, "postgres engine without a DSN must be rejected")
}

func TestLoadConfig_UnknownEngineRejected(t *testing.T) {
	t.Setenv("ENGRAM_STORAGE_ENGINE", "cassandra")

	_, err := config.LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfig_InvalidIntFallsBack(t *testing.T) {
	t.Setenv("ENGRAM_EMBEDDING_CACHE_SIZE", "not-a-number")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.Embedding.CacheSize,
		"unparsable int env vars fall back to the default")
}

func TestProviderSettings(t *testing.T) {
	t.Setenv("ENGRAM_EMBEDDING_PROVIDER", "ollama")
	t.Setenv("ENGRAM_EMBEDDING_URL", "http://localhost:11434")
	t.Setenv("ENGRAM_EMBEDDING_MODEL", "nomic-embed-text")
	t.Setenv("ENGRAM_EMBEDDING_TIMEOUT_SECONDS", "10")

	cfg, err := config.LoadConfig()
	require.NoError(t, err)

	settings := cfg.ProviderSettings()
	assert.Equal(t, "ollama", settings.Provider)
	assert.Equal(t, "http://localhost:11434", settings.BaseURL)
	assert.Equal(t, "nomic-embed-text", settings.Model)
	assert.Equal(t, 10*time.Second, settings.Timeout)
}
