package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/medsim/diagnosis-gateway/internal/pkg/config"
	"github.com/medsim/diagnosis-gateway/internal/scheduler"
	"github.com/medsim/diagnosis-gateway/internal/storage"
)

// Truncates the agent memory tables once and exits.
func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	backend, err := storage.Open(ctx, cfg.Storage, cfg.Memory, logger)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer backend.Close()

	cleanup := scheduler.NewMemoryCleanup(backend.Memories, cfg.Memory.CleanupInterval, logger)
	if err := cleanup.RunOnce(ctx); err != nil {
		logger.Error("memory cleanup failed", slog.String("error", err.Error()))
		backend.Close()
		cancel()
		os.Exit(1)
	}
}
