package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abhisamaya/therapy-bro/internal/config"
	"github.com/abhisamaya/therapy-bro/internal/db"
	"github.com/abhisamaya/therapy-bro/internal/llm"
	"github.com/abhisamaya/therapy-bro/internal/logger"
	"github.com/abhisamaya/therapy-bro/internal/memory"
	"github.com/abhisamaya/therapy-bro/internal/metrics"
	"github.com/abhisamaya/therapy-bro/internal/server"
	"github.com/abhisamaya/therapy-bro/internal/session"
)

// @title TherapyBro API
// @version 1.0
// @description Chat companion backend with wallet-billed session time.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {

	logger.Init()
	logger.Info("Starting TherapyBro application")
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, "migrations"); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	streamer, err := llm.New(cfg.LLMProvider)
	if err != nil {
		logger.Fatalf("Failed to initialize LLM provider: %v", err)
	}
	logger.Info("LLM provider ready", "model", streamer.Model())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var finalizer session.Finalizer
	if cfg.MemoryEnabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		memoryService := memory.NewService(memory.NewRepository(database), rdb)
		defer memoryService.Close()

		go memoryService.Start(ctx)
		go watchFinalizeQueue(ctx, memoryService)
		finalizer = memoryService
		logger.Info("Memory service initialized", "redis", cfg.RedisAddr)
	} else {
		logger.Warn("Memory service disabled, expired sessions are not finalized")
	}

	srv := server.New(database, cfg, streamer, finalizer)

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}

func watchFinalizeQueue(ctx context.Context, memoryService *memory.Service) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := memoryService.QueueLength(ctx); err == nil {
				metrics.FinalizeQueueLength.Set(float64(n))
			}
		}
	}
}
