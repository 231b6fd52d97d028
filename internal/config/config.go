package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/Tesseract-Nexus/go-shared/secrets"
)

// Config holds all configuration for the catalog migration service
type Config struct {
	// Server
	Port        string
	Environment string

	// Service auth (X-API-Key header); empty disables auth
	APIKey string

	// Catalog database (migration target + job bookkeeping)
	DatabaseURL string

	// GCP
	GCPProjectID string

	// Source selection: "api" or "db"
	SourceKind string

	// API source
	SourceAPIBaseURL string
	SourceAPIKey     string
	SourceAPIMode    string // "api" or "dispatcher"

	// DB source
	SourceDatabaseURL string
	SourceTablePrefix string
	SourceBaseURL     string // shop base URL, used to build image URLs
	SourceLangID      int
	SourceShopID      int

	// Batch settings
	BatchMaxItems  int
	RequestTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	// Build DATABASE_URL from components using GCP Secret Manager for password
	databaseURL := getEnv("DATABASE_URL", "")
	if databaseURL == "" {
		dbHost := getEnv("DB_HOST", "localhost")
		dbPort := getEnv("DB_PORT", "5432")
		dbUser := getEnv("DB_USER", "postgres")
		dbPassword := secrets.GetDBPassword()
		dbName := getEnv("DB_NAME", "catalog")
		dbSSLMode := getEnv("DB_SSLMODE", "disable")

		databaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			dbUser, dbPassword, dbHost, dbPort, dbName, dbSSLMode)
	}

	config := &Config{
		Port:        getEnv("PORT", "8099"),
		Environment: getEnv("ENVIRONMENT", "development"),
		APIKey:      getEnv("API_KEY", ""),
		DatabaseURL: databaseURL,

		// GCP
		GCPProjectID: getEnv("GCP_PROJECT_ID", ""),

		// Source
		SourceKind: getEnv("SOURCE_KIND", "api"),

		SourceAPIBaseURL: getEnv("SOURCE_API_BASE_URL", ""),
		SourceAPIKey:     getEnv("SOURCE_API_KEY", ""),
		SourceAPIMode:    getEnv("SOURCE_API_MODE", "api"),

		SourceDatabaseURL: getEnv("SOURCE_DATABASE_URL", ""),
		SourceTablePrefix: getEnv("SOURCE_TABLE_PREFIX", "ps_"),
		SourceBaseURL:     getEnv("SOURCE_BASE_URL", ""),
		SourceLangID:      getEnvAsInt("SOURCE_LANG_ID", 1),
		SourceShopID:      getEnvAsInt("SOURCE_SHOP_ID", 0),

		// Batch settings
		BatchMaxItems:  getEnvAsInt("BATCH_MAX_ITEMS", 50),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
	}

	// Validate required fields
	if config.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	switch config.SourceKind {
	case "api":
		if config.SourceAPIBaseURL == "" {
			log.Fatal("SOURCE_API_BASE_URL is required for the api source")
		}
	case "db":
		if config.SourceDatabaseURL == "" {
			log.Fatal("SOURCE_DATABASE_URL is required for the db source")
		}
	default:
		log.Fatalf("unknown SOURCE_KIND %q (expected api or db)", config.SourceKind)
	}

	if config.GCPProjectID == "" {
		log.Println("Warning: GCP_PROJECT_ID not set, secret:// values will not resolve")
	}

	return config
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}
