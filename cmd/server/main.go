package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xaenox/command-center/internal/api"
	"github.com/xaenox/command-center/internal/blob"
	"github.com/xaenox/command-center/internal/gateway"
	"github.com/xaenox/command-center/internal/realtime"
	"github.com/xaenox/command-center/internal/stats"
	"github.com/xaenox/command-center/internal/storage"
	"github.com/xaenox/command-center/pkg/config"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err), zap.String("path", "config.yaml"))
	}

	// Initialize storage
	var store storage.Storage
	if cfg.Database.UseInMemory {
		logger.Info("Using in-memory storage")
		store = storage.NewMemoryStorage()
	} else {
		logger.Info("Using PostgreSQL storage")
		dbConfig := storage.DatabaseConfig{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			DBName:      cfg.Database.DBName,
			SSLMode:     cfg.Database.SSLMode,
			UseInMemory: cfg.Database.UseInMemory,
		}
		store, err = storage.NewPostgresStorage(dbConfig)
		if err != nil {
			logger.Fatal("Failed to initialize storage", zap.Error(err))
		}
	}
	defer store.Close()

	// Initialize gateway client
	gw := gateway.NewClient(gateway.Options{
		URL:               cfg.Gateway.URL,
		Token:             cfg.Gateway.Token,
		Model:             cfg.Gateway.Model,
		RequestTimeout:    cfg.Gateway.RequestTimeout,
		StreamIdleTimeout: cfg.Gateway.StreamIdleTimeout,
	}, logger)

	// Initialize blob store
	blobs, err := blob.NewFSStore(cfg.Uploads.Dir, cfg.Uploads.BaseURL)
	if err != nil {
		logger.Fatal("Failed to initialize blob store", zap.Error(err))
	}

	// Initialize realtime hub and health collector
	hub := realtime.NewHub(logger)

	collector := stats.NewCollector(store, gw, logger)
	if err := collector.Start(cfg.Stats.Schedule); err != nil {
		logger.Fatal("Failed to start stats collector", zap.Error(err), zap.String("schedule", cfg.Stats.Schedule))
	}
	defer collector.Stop()

	// Build the router
	handler := api.NewHandler(store, gw, hub, blobs, collector,
		cfg.Gateway.AssistantLabel, cfg.Gateway.OperatorLabel, logger)
	router := api.NewRouter(handler, hub, blobs.Dir(), cfg.Server.AuthToken, logger)

	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: the relay holds streaming responses open.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		logger.Info("Starting server", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Shutdown error", zap.Error(err))
	}
}
