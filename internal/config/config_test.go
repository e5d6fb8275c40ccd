package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"STOREFRONT_ENV", "STOREFRONT_API_URL", "STOREFRONT_DEV_API_URL", "STOREFRONT_PROD_API_URL",
		"STOREFRONT_REQUEST_TIMEOUT", "STOREFRONT_STORE", "STOREFRONT_STORE_DSN", "STOREFRONT_STORE_NAMESPACE",
		"STOREFRONT_KAFKA_BROKERS", "STOREFRONT_KAFKA_TOPIC", "STOREFRONT_LOG_LEVEL", "STOREFRONT_LOG_FORMAT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "http://localhost:5000", cfg.APIBaseURL)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "sqlite", cfg.StoreBackend)
	assert.Equal(t, "storefront.db", cfg.StoreDSN)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_ProductionHost(t *testing.T) {
	clearEnv(t)
	t.Setenv("STOREFRONT_ENV", "production")
	t.Setenv("STOREFRONT_PROD_API_URL", "https://shop.example.com/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com", cfg.APIBaseURL)
}

func TestLoad_OverrideWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("STOREFRONT_ENV", "production")
	t.Setenv("STOREFRONT_API_URL", "http://127.0.0.1:9999")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999", cfg.APIBaseURL)
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("STOREFRONT_ENV", "staging")
	_, err := Load()
	assert.ErrorContains(t, err, "invalid STOREFRONT_ENV")

	clearEnv(t)
	t.Setenv("STOREFRONT_REQUEST_TIMEOUT", "soon")
	_, err = Load()
	assert.ErrorContains(t, err, "invalid STOREFRONT_REQUEST_TIMEOUT")
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("STOREFRONT_KAFKA_BROKERS")
	os.Unsetenv("STOREFRONT_STORE")

	path := filepath.Join(t.TempDir(), ".env")
	content := "STOREFRONT_KAFKA_BROKERS=k1:9092, k2:9092\nSTOREFRONT_STORE=redis\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("STOREFRONT_KAFKA_BROKERS")
		os.Unsetenv("STOREFRONT_STORE")
	})

	cfg, err := Load(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "redis", cfg.StoreBackend)
}
