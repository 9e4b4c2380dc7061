package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cuongbtq/job-triage/internal/bootstrap"
	"github.com/cuongbtq/job-triage/internal/config"
	"github.com/cuongbtq/job-triage/internal/worker"
	"github.com/joho/godotenv"

	_ "time/tzdata"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.Logger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	setupCtx, stopSetup := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSetup()

	dbClient, store, err := bootstrap.Database(setupCtx, &cfg.Database, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbClient.Close()

	appLogger.Info("Database connection established")

	rabbitClient, err := bootstrap.RabbitMQ(setupCtx, &cfg.RabbitMQ, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}
	defer rabbitClient.Close()

	appLogger.Info("RabbitMQ connection established")

	pipeline, err := bootstrap.NewPipeline(&cfg.Pipeline, store, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	workerInstance := worker.NewWorker(&worker.Config{
		Logger:            appLogger.Logger,
		Runs:              store,
		Trainer:           pipeline.Trainer,
		Artifacts:         pipeline.Artifacts,
		Consumer:          rabbitClient,
		Concurrency:       cfg.Worker.Concurrency,
		MaxRuns:           cfg.Worker.MaxRuns,
		RunTimeout:        cfg.Worker.RunTimeout,
		HeartbeatInterval: cfg.Worker.HeartbeatInterval,
	})

	var scheduler *worker.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler, err = worker.NewScheduler(worker.SchedulerConfig{
			Logger:     appLogger.Logger,
			Runs:       store,
			Publisher:  rabbitClient,
			Spec:       cfg.Scheduler.RetrainCron,
			Location:   pipeline.Location,
			MaxRetries: cfg.Worker.MaxRetries,
			RunTimeout: cfg.Worker.RunTimeout,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize scheduler: %w", err)
		}
		scheduler.Start()
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- workerInstance.Start(ctx)
	}()

	appLogger.Info("Worker service started successfully",
		slog.String("worker_id", workerInstance.ID()),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-rabbitClient.NotifyClose():
		appLogger.Error("RabbitMQ connection closed",
			slog.Any("error", err),
		)
		runErr = errors.New("rabbitmq connection closed")
	case err := <-done:
		appLogger.Error("Worker stopped unexpectedly",
			slog.Any("error", err),
		)
		if scheduler != nil {
			scheduler.Stop()
		}
		return err
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	// Cancel context to stop worker
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	appLogger.Info("Database pool statistics", slog.String("stats", dbClient.Stats()))
	appLogger.Info("Worker service shutdown complete")
	return runErr
}
