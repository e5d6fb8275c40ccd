package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env            string
	APIBaseURL     string
	RequestTimeout time.Duration

	StoreBackend   string
	StoreDSN       string
	StoreNamespace string

	KafkaBrokers []string
	KafkaTopic   string

	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the environment. Each env file is loaded
// first if it exists; variables already set win over file values.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", f, err)
		}
	}

	env := strings.ToLower(getEnv("STOREFRONT_ENV", EnvDevelopment))
	if env != EnvDevelopment && env != EnvProduction {
		return nil, fmt.Errorf("invalid STOREFRONT_ENV %q", env)
	}

	timeout, err := time.ParseDuration(getEnv("STOREFRONT_REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid STOREFRONT_REQUEST_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Env: env,
		APIBaseURL: resolveBaseURL(env,
			os.Getenv("STOREFRONT_API_URL"),
			getEnv("STOREFRONT_DEV_API_URL", "http://localhost:5000"),
			getEnv("STOREFRONT_PROD_API_URL", "https://api.storefront.example"),
		),
		RequestTimeout: timeout,
		StoreBackend:   strings.ToLower(getEnv("STOREFRONT_STORE", "sqlite")),
		StoreDSN:       getEnv("STOREFRONT_STORE_DSN", "storefront.db"),
		StoreNamespace: getEnv("STOREFRONT_STORE_NAMESPACE", "default"),
		KafkaBrokers:   splitList(os.Getenv("STOREFRONT_KAFKA_BROKERS")),
		KafkaTopic:     getEnv("STOREFRONT_KAFKA_TOPIC", "storefront-events"),
		LogLevel:       getEnv("STOREFRONT_LOG_LEVEL", "info"),
		LogFormat:      getEnv("STOREFRONT_LOG_FORMAT", "text"),
	}
	return cfg, nil
}

func resolveBaseURL(env, override, devURL, prodURL string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}
	if env == EnvProduction {
		return strings.TrimRight(prodURL, "/")
	}
	return strings.TrimRight(devURL, "/")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
