package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/groundtruth-intake-api/internal/api"
	"github.com/groundtruth-intake-api/internal/config"
	"github.com/groundtruth-intake-api/internal/database"
	"github.com/groundtruth-intake-api/internal/repository"
	"github.com/groundtruth-intake-api/internal/service"
	"github.com/groundtruth-intake-api/pkg/logger"
)

func main() {
	// Bootstrap logger until configuration is loaded
	log := logger.New("info", "json")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log = logger.New(cfg.Log.Level, cfg.Log.Format)
	log.Info().
		Str("match_mode", string(cfg.Validation.Mode())).
		Int64("max_upload_size", cfg.Upload.MaxUploadSize).
		Msg("Starting ground truth intake API server...")

	// Initialize database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Apply embedded migrations
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	repos := repository.New(db)

	// Initialize services
	services := service.NewServices(repos, cfg, log)

	// Start background run processor
	go services.Job.StartProcessor(context.Background())
	log.Info().Msg("Background run processor started")

	// Initialize router
	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(services, cfg, db, log)

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// Stop run processor; interrupted runs return to the queue
	services.Job.StopProcessor()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}
