package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/plumbline/blueprint-engine/pkg/breaker"
	"github.com/plumbline/blueprint-engine/pkg/config"
	"github.com/plumbline/blueprint-engine/pkg/database"
	"github.com/plumbline/blueprint-engine/pkg/handlers"
	"github.com/plumbline/blueprint-engine/pkg/logging"
	"github.com/plumbline/blueprint-engine/pkg/middleware"
	"github.com/plumbline/blueprint-engine/pkg/render"
	"github.com/plumbline/blueprint-engine/pkg/repositories"
	"github.com/plumbline/blueprint-engine/pkg/services"
	"github.com/plumbline/blueprint-engine/pkg/vision"
)

// Version is set at build time via ldflags
var Version = "dev"

const migrationsPath = "migrations"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("configuration loaded",
		zap.String("environment", cfg.Env),
		zap.String("version", cfg.Version),
		zap.String("database", logging.SanitizeConnectionString(cfg.Database.ConnectionString())),
		zap.String("model", cfg.Anthropic.Model),
		zap.Bool("vision_configured", cfg.Anthropic.IsConfigured()),
		zap.Bool("renderer_enabled", cfg.Renderer.Enabled))

	ctx := context.Background()

	pool, err := database.Connect(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database",
			zap.String("error", logging.SanitizeError(err)))
	}
	defer pool.Close()

	if err := runMigrations(cfg, logger); err != nil {
		logger.Fatal("failed to run migrations",
			zap.String("error", logging.SanitizeError(err)))
	}

	// A missing API key leaves the service up with analysis disabled so the
	// stored-result and reporting endpoints keep working.
	var visionClient vision.Client
	if cfg.Anthropic.IsConfigured() {
		client, err := vision.NewClient(&vision.Config{
			APIKey:    cfg.Anthropic.APIKey,
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.Anthropic.MaxTokens,
		}, logger)
		if err != nil {
			logger.Fatal("failed to create vision client", zap.Error(err))
		}
		visionClient = client
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set, analysis pipeline disabled")
	}

	cb := breaker.New("vision", breaker.Config{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout(),
		Timeout:          cfg.Breaker.CallTimeout(),
		MonitoringPeriod: cfg.Breaker.MonitoringPeriod(),
		OnStateChange: func(name string, from, to breaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	blueprintRepo := repositories.NewBlueprintRepository(pool, cfg.Database.SaveTimeout(), logger)
	refRepo := repositories.NewFixtureReferenceRepository(pool, logger)
	enricher := services.NewFixtureEnrichmentService(refRepo, logger)
	analysisSvc := services.NewBlueprintAnalysisService(visionClient, cb, enricher, blueprintRepo, logger)
	renderer := render.NewRenderer(&cfg.Renderer, logger)

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, analysisSvc, logger).RegisterRoutes(mux)
	handlers.NewBlueprintHandler(analysisSvc, blueprintRepo, renderer, logger).RegisterRoutes(mux)

	handler := middleware.Correlation()(middleware.RequestLogger(logger)(mux))

	addr := cfg.BindAddr + ":" + cfg.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting blueprint-engine",
		zap.String("addr", addr),
		zap.String("version", cfg.Version))
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" || env == "test" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// runMigrations opens a short-lived database/sql connection, which
// golang-migrate requires, and applies pending migrations.
func runMigrations(cfg *config.Config, logger *zap.Logger) error {
	sqlDB, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return database.RunMigrations(sqlDB, migrationsPath, logger)
}
