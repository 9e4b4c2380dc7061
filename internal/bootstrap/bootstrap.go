// Package bootstrap turns a loaded Config into the clients and pipeline
// components shared by the service binaries and the CLI.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cuongbtq/job-triage/internal/config"
	"github.com/cuongbtq/job-triage/internal/prediction"
	"github.com/cuongbtq/job-triage/internal/storage"
	"github.com/cuongbtq/job-triage/internal/training"
	"github.com/cuongbtq/job-triage/shared/database"
	"github.com/cuongbtq/job-triage/shared/logger"
	"github.com/cuongbtq/job-triage/shared/rabbitmq"
)

// Logger initializes and configures the application logger
func Logger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
		NoColor:      cfg.NoColor,
	})
}

// DatabaseConfig maps the application section onto the client config
func DatabaseConfig(cfg *config.DatabaseConfig) *database.Config {
	return &database.Config{
		Driver:          cfg.Driver,
		Path:            cfg.Path,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}
}

// Database connects to the configured database and makes sure the schema
// exists. The returned storage shares the client's connection pool.
func Database(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*database.Client, *storage.Storage, error) {
	dbCfg := DatabaseConfig(cfg)
	if dbCfg.Driver == database.DriverSQLite || dbCfg.Driver == "" {
		if err := os.MkdirAll(filepath.Dir(dbCfg.Path), 0o755); err != nil {
			return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	client, err := database.NewClient(dbCfg, logger)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStorage(client.GetDB(), logger)
	if err := store.EnsureSchema(ctx); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return client, store, nil
}

// RabbitMQConfig maps the application section onto the client config
func RabbitMQConfig(cfg *config.RabbitMQConfig) *rabbitmq.Config {
	return &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
		PrefetchCount:      cfg.Consumer.PrefetchCount,
		ConsumerExclusive:  cfg.Consumer.Exclusive,
	}
}

// RabbitMQ initializes the RabbitMQ client
func RabbitMQ(ctx context.Context, cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(ctx, RabbitMQConfig(cfg), logger)
}

// Pipeline bundles the training and prediction components built on one
// storage
type Pipeline struct {
	Trainer   *training.Trainer
	Artifacts *training.Store
	Predictor *prediction.Predictor
	Location  *time.Location
}

// NewPipeline wires trainer, artifact store and predictor from the
// pipeline section
func NewPipeline(cfg *config.PipelineConfig, source training.RecordSource, logger *slog.Logger) (*Pipeline, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	trainer := training.NewTrainer(cfg.TrainingConfig(), source, logger)
	artifacts := training.NewStore(cfg.ArtifactDir)
	predictor := prediction.NewPredictor(source, trainer, artifacts, loc, cfg.TrainTimeout, logger)

	return &Pipeline{
		Trainer:   trainer,
		Artifacts: artifacts,
		Predictor: predictor,
		Location:  loc,
	}, nil
}
