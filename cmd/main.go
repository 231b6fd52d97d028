package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"catalog-migration-service/internal/clients"
	"catalog-migration-service/internal/clients/prestashop"
	"catalog-migration-service/internal/clients/prestashopdb"
	"catalog-migration-service/internal/config"
	"catalog-migration-service/internal/handlers"
	"catalog-migration-service/internal/media"
	"catalog-migration-service/internal/middleware"
	"catalog-migration-service/internal/models"
	"catalog-migration-service/internal/repository"
	"catalog-migration-service/internal/secrets"
	"catalog-migration-service/internal/services"
	"catalog-migration-service/internal/store"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	// Load configuration
	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "development" {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	// Connect to the catalog database
	db, err := initDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate models
	catalogStore := store.NewGormStore(db, logger)
	if err := catalogStore.AutoMigrate(); err != nil {
		log.Printf("Warning: Auto-migration failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.MigrationJob{},
		&models.MigrationLog{},
		&models.ProductMapping{},
	); err != nil {
		log.Printf("Warning: Auto-migration failed: %v", err)
	}
	log.Println("Database models migrated")

	ctx := context.Background()

	// Initialize the secret resolver for secret:// config values
	var resolver *secrets.GCPSecretResolver
	if cfg.GCPProjectID != "" {
		resolver, err = secrets.NewGCPSecretResolver(ctx, cfg.GCPProjectID)
		if err != nil {
			log.Printf("Warning: Failed to initialize GCP Secret Manager: %v", err)
		} else {
			defer resolver.Close()
			log.Println("GCP Secret Manager initialized")
		}
	}

	// Build the product source the service migrates from
	source, err := buildSource(ctx, cfg, resolver, logger)
	if err != nil {
		log.Fatalf("Failed to initialize product source: %v", err)
	}

	fetcher := media.NewHTTPFetcher(logger)
	defer fetcher.Close()

	// Initialize repositories and services
	migrationRepo := repository.NewMigrationRepository(db)
	migrationService := services.NewMigrationService(source, catalogStore, fetcher, migrationRepo, logger)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db)
	connectionHandler := handlers.NewConnectionHandler(source)
	productHandler := handlers.NewProductHandler(source)
	migrationHandler := handlers.NewMigrationHandler(migrationService, cfg.BatchMaxItems)

	// Setup router
	router := setupRouter(cfg, logger, healthHandler, connectionHandler, productHandler, migrationHandler)

	// Start server
	log.Printf("Catalog Migration Service starting on port %s (env: %s, source: %s)", cfg.Port, cfg.Environment, cfg.SourceKind)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func initDatabase(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// buildSource constructs the configured source adapter. secret:// values
// in credentials are resolved when a resolver is available.
func buildSource(ctx context.Context, cfg *config.Config, resolver *secrets.GCPSecretResolver, logger *logrus.Logger) (clients.ProductSource, error) {
	resolve := func(value string) (string, error) {
		if resolver == nil {
			return value, nil
		}
		return resolver.Resolve(ctx, value)
	}

	switch cfg.SourceKind {
	case "api":
		apiKey, err := resolve(cfg.SourceAPIKey)
		if err != nil {
			return nil, err
		}
		return prestashop.NewClient(cfg.SourceAPIBaseURL, apiKey, cfg.SourceAPIMode, logger), nil

	case "db":
		dsn, err := resolve(cfg.SourceDatabaseURL)
		if err != nil {
			return nil, err
		}
		return prestashopdb.NewClient(ctx, prestashopdb.Config{
			DSN:     dsn,
			Prefix:  cfg.SourceTablePrefix,
			BaseURL: cfg.SourceBaseURL,
			LangID:  cfg.SourceLangID,
			ShopID:  cfg.SourceShopID,
		}, logger)

	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.SourceKind)
	}
}

// setupRouter configures the HTTP router
func setupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	healthHandler *handlers.HealthHandler,
	connectionHandler *handlers.ConnectionHandler,
	productHandler *handlers.ProductHandler,
	migrationHandler *handlers.MigrationHandler,
) *gin.Engine {
	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	// Security headers middleware
	router.Use(middleware.SecurityHeaders())

	// CORS middleware
	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{
			"http://localhost:3000",
			"http://localhost:3001",
		}
	}
	router.Use(middleware.CORS(origins))

	// Health check
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	// API routes - require the shared service key
	v1 := router.Group("/api/v1")
	v1.Use(middleware.APIKeyAuth(cfg.APIKey))
	{
		v1.POST("/connections/test", connectionHandler.Test)
		v1.GET("/products", productHandler.List)

		migration := v1.Group("/migration")
		{
			migration.POST("/batches", migrationHandler.RunBatch)
			migration.GET("/jobs", migrationHandler.ListJobs)
			migration.GET("/jobs/:id", migrationHandler.GetJob)
			migration.GET("/jobs/:id/logs", migrationHandler.GetJobLogs)
		}
	}

	return router
}
