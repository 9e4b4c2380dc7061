package main

import (
	"context"
	"fmt"

	"github.com/cuongbtq/job-triage/internal/bootstrap"
	"github.com/cuongbtq/job-triage/internal/config"
	"github.com/cuongbtq/job-triage/internal/storage"
	"github.com/cuongbtq/job-triage/shared/database"
	"github.com/cuongbtq/job-triage/shared/logger"
)

// app holds the clients one command invocation works with
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	db       *database.Client
	store    *storage.Storage
	pipeline *bootstrap.Pipeline
}

func openApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.Logger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, store, err := bootstrap.Database(ctx, &cfg.Database, appLogger.Logger)
	if err != nil {
		appLogger.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	pipeline, err := bootstrap.NewPipeline(&cfg.Pipeline, store, appLogger.Logger)
	if err != nil {
		db.Close()
		appLogger.Close()
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   appLogger,
		db:       db,
		store:    store,
		pipeline: pipeline,
	}, nil
}

func (a *app) Close() {
	a.db.Close()
	a.logger.Close()
}
