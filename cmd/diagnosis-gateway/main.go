package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/medsim/diagnosis-gateway/internal/pkg/config"
	"github.com/medsim/diagnosis-gateway/internal/telemetry"
	"github.com/medsim/diagnosis-gateway/pkg/gateway"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Initialize structured logger
	logger := slog.New(telemetry.NewTraceHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))
	slog.SetDefault(logger)

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	opts := []gateway.Option{
		gateway.WithConfig(cfg),
		gateway.WithLogger(logger),
	}

	if cfg.Telemetry.Tracing {
		shutdown, err := telemetry.InitTracer(cfg.Telemetry.ServiceName, os.Stdout, logger)
		if err != nil {
			log.Fatalf("Failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	if cfg.Telemetry.Metrics {
		metrics, err := telemetry.InitMetrics(cfg.Telemetry.ServiceName, logger)
		if err != nil {
			log.Fatalf("Failed to initialize metrics: %v", err)
		}
		defer func() {
			if err := metrics.Shutdown(context.Background()); err != nil {
				logger.Error("failed to shutdown metrics", slog.String("error", err.Error()))
			}
		}()
		opts = append(opts, gateway.WithMetricsHandler(metrics.Handler))
	}

	// Register built-in providers and frontdoors
	gateway.RegisterBuiltins()

	gw, err := gateway.New(opts...)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := gw.Start(ctx); err != nil {
		log.Fatalf("Failed to start gateway: %v", err)
	}

	logger.Info("Gateway started successfully",
		slog.String("config", configPath),
		slog.String("storage", cfg.Storage.Type),
		slog.String("memory_backend", cfg.Memory.Backend),
		slog.String("llm_provider", cfg.LLM.Provider),
		slog.String("embedder", cfg.Knowledge.Embedder))

	// Wait for shutdown signal or a serve failure
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, stopping gateway...")
	case err := <-gw.Errors():
		logger.Error("gateway stopped serving", slog.String("error", err.Error()))
		exitCode = 1
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		exitCode = 1
	}

	logger.Info("Gateway shutdown complete")
	return exitCode
}
