package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// RepositoryDriver selects which domain.*Repository implementations main.go wires up.
type RepositoryDriver string

const (
	RepositoryDriverMemory RepositoryDriver = "memory"
	RepositoryDriverPostgres RepositoryDriver = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	// RepositoryDriver chooses between the in-memory and the postgres repositories.
	RepositoryDriver RepositoryDriver

	// Database (only required when RepositoryDriver is postgres)
	DatabaseURL string

	// Auth0
	Auth0Domain string
	Auth0Audience string
	Auth0ClientID string

	// Server
	Port string
	CORSOrigins []string
	Env string

	// Payment provider
	Provider ProviderConfig

	// FrontendBaseURL roots the order return/cancel URLs built in C7.
	FrontendBaseURL string

	// SnapshotDir is where deleted-event JSON snapshots are written.
	SnapshotDir string
}

// ProviderMode selects the payment provider's base URL.
type ProviderMode string

const (
	ProviderModeSandbox ProviderMode = "sandbox"
	ProviderModeLive ProviderMode = "live"
)

// ProviderConfig holds payment-provider credentials.
type ProviderConfig struct {
	Mode ProviderMode
	ClientID string
	ClientSecret string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load.env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		RepositoryDriver: RepositoryDriver(getEnv("REPOSITORY_DRIVER", "memory")),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		Auth0Domain: getEnv("AUTH0_DOMAIN", ""),
		Auth0Audience: getEnv("AUTH0_AUDIENCE", ""),
		Auth0ClientID: getEnv("AUTH0_CLIENT_ID", ""),
		Port: getEnv("PORT", "8080"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		Env: getEnv("ENV", "development"),
		Provider: ProviderConfig{
			Mode: ProviderMode(getEnv("PROVIDER_MODE", "sandbox")),
			ClientID: getEnv("PROVIDER_CLIENT_ID", ""),
			ClientSecret: getEnv("PROVIDER_CLIENT_SECRET", ""),
		},
		FrontendBaseURL: getEnv("FRONTEND_BASE_URL", "http://localhost:3000"),
		SnapshotDir: getEnv("SNAPSHOT_DIR", "./snapshots"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.RepositoryDriver != RepositoryDriverMemory && c.RepositoryDriver != RepositoryDriverPostgres {
		return fmt.Errorf("REPOSITORY_DRIVER must be memory or postgres")
	}
	if c.RepositoryDriver == RepositoryDriverPostgres && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when REPOSITORY_DRIVER=postgres")
	}
	if c.Auth0Domain == "" {
		return fmt.Errorf("AUTH0_DOMAIN is required")
	}
	if c.Auth0Audience == "" {
		return fmt.Errorf("AUTH0_AUDIENCE is required")
	}
	if c.Provider.ClientID == "" {
		return fmt.Errorf("PROVIDER_CLIENT_ID is required")
	}
	if c.Provider.ClientSecret == "" {
		return fmt.Errorf("PROVIDER_CLIENT_SECRET is required")
	}
	if c.Provider.Mode != ProviderModeSandbox && c.Provider.Mode != ProviderModeLive {
		return fmt.Errorf("PROVIDER_MODE must be sandbox or live")
	}
	if c.SnapshotDir == "" {
		return fmt.Errorf("SNAPSHOT_DIR is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
