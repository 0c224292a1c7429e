package config

import (
	"path/filepath"
	"strings"
)

// Config holds all application configuration in a structured way.
type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	Evolution  EvolutionConfig
	WorkerPool WorkerPoolConfig
}

type AppConfig struct {
	Version            string
	Port               string
	Debug              bool
	Environment        string
	BaseURL            string
	CorsAllowedOrigins []string
}

type DatabaseConfig struct {
	Driver          string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string // File path for SQLite, DB name for Postgres
	ValkeyEnabled   bool
	ValkeyAddress   string
	ValkeyPassword  string
	ValkeyDB        int
	ValkeyKeyPrefix string
}

type EvolutionConfig struct {
	// APIURL and AdminToken are the defaults for provisioning; each channel
	// stores its own afterwards.
	APIURL     string
	AdminToken string
	// WebhookURL is the public address the gateway posts events to.
	WebhookURL string
	// PublicMediaURLs marks stored attachment URLs as fetchable by the
	// gateway without signed query parameters.
	PublicMediaURLs bool
}

type WorkerPoolConfig struct {
	Size      int
	QueueSize int
}

// Global provides access to the loaded configuration globally.
var Global *Config

// LoadConfig loads configuration from environment variables or defaults.
func LoadConfig() (*Config, error) {
	debug := getEnvBool("APP_DEBUG", false)

	corsOrigins := []string{"http://localhost:3000"}
	if v := getEnv("APP_CORS_ALLOWED_ORIGINS", ""); v != "" {
		corsOrigins = strings.Split(v, ",")
	}

	baseURL := getEnv("APP_BASE_URL", "http://localhost:3000")

	cfg := &Config{
		App: AppConfig{
			Version:            "v1.2.0",
			Port:               getEnv("APP_PORT", "3000"),
			Debug:              debug,
			Environment:        getEnv("APP_ENV", "development"),
			BaseURL:            baseURL,
			CorsAllowedOrigins: corsOrigins,
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "sqlite"),
			Name:            getEnv("DB_NAME", filepath.Join("storages", "evobridge.db")),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			ValkeyEnabled:   getEnvBool("VALKEY_ENABLED", false),
			ValkeyAddress:   getEnv("VALKEY_ADDRESS", "localhost:6379"),
			ValkeyPassword:  getEnv("VALKEY_PASSWORD", ""),
			ValkeyDB:        getEnvInt("VALKEY_DB", 0),
			ValkeyKeyPrefix: getEnv("VALKEY_KEY_PREFIX", "evobridge:"),
		},
		Evolution: EvolutionConfig{
			APIURL:          getEnv("EVOLUTION_API_URL", ""),
			AdminToken:      getEnv("EVOLUTION_ADMIN_TOKEN", ""),
			WebhookURL:      getEnv("EVOLUTION_WEBHOOK_URL", baseURL+"/webhooks/evolution"),
			PublicMediaURLs: getEnvBool("EVOLUTION_PUBLIC_MEDIA", false),
		},
		WorkerPool: WorkerPoolConfig{
			Size:      getEnvInt("MESSAGE_WORKER_POOL_SIZE", 20),
			QueueSize: getEnvInt("MESSAGE_WORKER_QUEUE_SIZE", 1000),
		},
	}

	Global = cfg
	return cfg, nil
}
