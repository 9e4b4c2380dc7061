// Package storage persists job records and training runs with sqlx. Queries
// use "?" bind variables rebound for the active driver, so the same code
// runs on SQLite and PostgreSQL.
package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

var (
	// ErrJobNotFound is returned when a job id does not exist
	ErrJobNotFound = errors.New("job not found")

	// ErrRunNotFound is returned when a training run id does not exist
	ErrRunNotFound = errors.New("training run not found")

	// ErrRunAlreadyClaimed is returned when claiming a run that is not PENDING
	ErrRunAlreadyClaimed = errors.New("training run already claimed or not in PENDING status")
)

// Storage handles all database operations
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	snippet TEXT NOT NULL,
	job_type TEXT NOT NULL,
	budget REAL,
	job_status TEXT NOT NULL,
	category2 TEXT NOT NULL,
	subcategory2 TEXT NOT NULL,
	url TEXT NOT NULL,
	workload TEXT NOT NULL DEFAULT '',
	duration TEXT NOT NULL DEFAULT '',
	date_created TIMESTAMP NOT NULL,
	skills TEXT NOT NULL DEFAULT '',
	"client.feedback" REAL NOT NULL DEFAULT 0,
	"client.reviews_count" INTEGER NOT NULL DEFAULT 0,
	"client.jobs_posted" INTEGER NOT NULL DEFAULT 0,
	"client.payment_verification_status" TEXT NOT NULL DEFAULT '',
	"client.past_hires" INTEGER NOT NULL DEFAULT 0,
	"client.country" TEXT NOT NULL DEFAULT '',
	label TEXT NOT NULL DEFAULT 'Uncategorized'
);
CREATE INDEX IF NOT EXISTS idx_jobs_label_created ON jobs (label, date_created DESC, id DESC);
CREATE TABLE IF NOT EXISTS training_runs (
	run_id TEXT PRIMARY KEY,
	trigger_source TEXT NOT NULL,
	status TEXT NOT NULL,
	worker_id TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL DEFAULT 0,
	timeout_seconds INTEGER NOT NULL DEFAULT 0,
	result TEXT,
	error_message TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	started_at TIMESTAMP,
	completed_at TIMESTAMP,
	last_heartbeat_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_training_runs_created ON training_runs (created_at DESC, run_id DESC);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	snippet TEXT NOT NULL,
	job_type TEXT NOT NULL,
	budget DOUBLE PRECISION,
	job_status TEXT NOT NULL,
	category2 TEXT NOT NULL,
	subcategory2 TEXT NOT NULL,
	url TEXT NOT NULL,
	workload TEXT NOT NULL DEFAULT '',
	duration TEXT NOT NULL DEFAULT '',
	date_created TIMESTAMPTZ NOT NULL,
	skills TEXT NOT NULL DEFAULT '',
	"client.feedback" DOUBLE PRECISION NOT NULL DEFAULT 0,
	"client.reviews_count" INTEGER NOT NULL DEFAULT 0,
	"client.jobs_posted" INTEGER NOT NULL DEFAULT 0,
	"client.payment_verification_status" TEXT NOT NULL DEFAULT '',
	"client.past_hires" INTEGER NOT NULL DEFAULT 0,
	"client.country" TEXT NOT NULL DEFAULT '',
	label TEXT NOT NULL DEFAULT 'Uncategorized'
);
CREATE INDEX IF NOT EXISTS idx_jobs_label_created ON jobs (label, date_created DESC, id DESC);
CREATE TABLE IF NOT EXISTS training_runs (
	run_id TEXT PRIMARY KEY,
	trigger_source TEXT NOT NULL,
	status TEXT NOT NULL,
	worker_id TEXT,
	retry_count INTEGER NOT NULL DEFAULT 0,
	max_retries INTEGER NOT NULL DEFAULT 0,
	timeout_seconds INTEGER NOT NULL DEFAULT 0,
	result TEXT,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	last_heartbeat_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_training_runs_created ON training_runs (created_at DESC, run_id DESC);
`

// EnsureSchema creates the tables and indexes if they do not exist
func (s *Storage) EnsureSchema(ctx context.Context) error {
	schema := sqliteSchema
	if s.db.DriverName() == "postgres" {
		schema = postgresSchema
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// sqlTime scans timestamps whether the driver hands back time.Time or the
// text SQLite stores.
type sqlTime struct {
	Time  time.Time
	Valid bool
}

func (t *sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = sqlTime{}
		return nil
	case time.Time:
		*t = sqlTime{Time: v.UTC(), Valid: true}
		return nil
	case int64:
		*t = sqlTime{Time: time.Unix(v, 0).UTC(), Valid: true}
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("cannot scan %T into timestamp", src)
}

func (t *sqlTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = sqlTime{Time: parsed.UTC(), Valid: true}
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}

func (t sqlTime) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, nil
	}
	return t.Time, nil
}

func (t sqlTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
