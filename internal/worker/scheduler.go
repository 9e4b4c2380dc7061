package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Publisher announces a run on the queue
type Publisher interface {
	PublishJSON(ctx context.Context, messageID string, v any) error
}

// SchedulerConfig configures the periodic retrain
type SchedulerConfig struct {
	Logger     *slog.Logger
	Runs       RunStore
	Publisher  Publisher
	Spec       string
	Location   *time.Location
	MaxRetries int
	RunTimeout time.Duration
}

// Scheduler creates and publishes a training run on a cron schedule
type Scheduler struct {
	logger     *slog.Logger
	runs       RunStore
	publisher  Publisher
	schedule   cron.Schedule
	loc        *time.Location
	cron       *cron.Cron
	maxRetries int
	runTimeout time.Duration
}

// standard five-field expressions: minute hour day-of-month month day-of-week
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewScheduler parses the schedule. Nothing runs until Start.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	schedule, err := cronParser.Parse(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("invalid retrain schedule %q: %w", cfg.Spec, err)
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	s := &Scheduler{
		logger:     cfg.Logger.With(slog.String("component", "scheduler")),
		runs:       cfg.Runs,
		publisher:  cfg.Publisher,
		schedule:   schedule,
		loc:        loc,
		maxRetries: cfg.MaxRetries,
		runTimeout: cfg.RunTimeout,
	}

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithParser(cronParser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	s.cron.Schedule(schedule, cron.FuncJob(func() {
		if _, err := s.Trigger(context.Background()); err != nil {
			s.logger.Error("Scheduled retrain failed", slog.String("error", err.Error()))
		}
	}))
	return s, nil
}

// Next returns the next activation after t in the scheduler's timezone
func (s *Scheduler) Next(t time.Time) time.Time {
	return s.schedule.Next(t.In(s.loc))
}

// Start runs the schedule in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Retrain scheduler started",
		slog.Time("next_run", s.Next(time.Now())),
	)
}

// Stop stops scheduling and waits for a running trigger to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Retrain scheduler stopped")
}

// Trigger creates a PENDING run and publishes it
func (s *Scheduler) Trigger(ctx context.Context) (*model.TrainingRun, error) {
	run := &model.TrainingRun{
		RunID:          uuid.NewString(),
		Trigger:        model.TriggerSchedule,
		MaxRetries:     s.maxRetries,
		TimeoutSeconds: int(s.runTimeout.Seconds()),
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create scheduled run: %w", err)
	}
	if err := s.publisher.PublishJSON(ctx, run.RunID, model.RunMessage{RunID: run.RunID}); err != nil {
		return nil, fmt.Errorf("publish scheduled run: %w", err)
	}

	s.logger.Info("Scheduled training run enqueued", slog.String("run_id", run.RunID))
	return run, nil
}

// cronLogger adapts slog to the cron.Logger interface
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]interface{}{slog.String("error", err.Error())}, keysAndValues...)...)
}
