package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/job-triage/internal/model"
)

const runColumns = `run_id, trigger_source, status, worker_id, retry_count, max_retries,
	timeout_seconds, result, error_message, created_at, updated_at,
	started_at, completed_at, last_heartbeat_at`

type runRow struct {
	RunID           string         `db:"run_id"`
	Trigger         string         `db:"trigger_source"`
	Status          string         `db:"status"`
	WorkerID        sql.NullString `db:"worker_id"`
	RetryCount      int            `db:"retry_count"`
	MaxRetries      int            `db:"max_retries"`
	TimeoutSeconds  int            `db:"timeout_seconds"`
	Result          sql.NullString `db:"result"`
	ErrorMessage    sql.NullString `db:"error_message"`
	CreatedAt       sqlTime        `db:"created_at"`
	UpdatedAt       sqlTime        `db:"updated_at"`
	StartedAt       sqlTime        `db:"started_at"`
	CompletedAt     sqlTime        `db:"completed_at"`
	LastHeartbeatAt sqlTime        `db:"last_heartbeat_at"`
}

func (r *runRow) toModel() *model.TrainingRun {
	run := &model.TrainingRun{
		RunID:           r.RunID,
		Trigger:         r.Trigger,
		Status:          r.Status,
		WorkerID:        r.WorkerID.String,
		RetryCount:      r.RetryCount,
		MaxRetries:      r.MaxRetries,
		TimeoutSeconds:  r.TimeoutSeconds,
		ErrorMessage:    r.ErrorMessage.String,
		CreatedAt:       r.CreatedAt.Time,
		UpdatedAt:       r.UpdatedAt.Time,
		StartedAt:       r.StartedAt.ptr(),
		CompletedAt:     r.CompletedAt.ptr(),
		LastHeartbeatAt: r.LastHeartbeatAt.ptr(),
	}
	if r.Result.Valid && r.Result.String != "" {
		run.Result = json.RawMessage(r.Result.String)
	}
	return run
}

// CreateRun inserts a new PENDING run
func (s *Storage) CreateRun(ctx context.Context, run *model.TrainingRun) error {
	now := s.now()
	run.Status = model.RunStatusPending
	run.CreatedAt = now
	run.UpdatedAt = now

	query := s.db.Rebind(`
		INSERT INTO training_runs (
			run_id, trigger_source, status, retry_count, max_retries,
			timeout_seconds, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query,
		run.RunID, run.Trigger, run.Status, run.RetryCount, run.MaxRetries,
		run.TimeoutSeconds, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create training run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id
func (s *Storage) GetRun(ctx context.Context, runID string) (*model.TrainingRun, error) {
	var row runRow
	query := s.db.Rebind(`SELECT ` + runColumns + ` FROM training_runs WHERE run_id = ?`)
	if err := s.db.GetContext(ctx, &row, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("failed to get training run: %w", err)
	}
	return row.toModel(), nil
}

// RunFilter selects a page of runs
type RunFilter struct {
	Status   string
	PageSize int
	Cursor   *RunCursor
}

// RunCursor is the position after the last run of the previous page
type RunCursor struct {
	CreatedAt time.Time
	RunID     string
}

// ListRuns returns up to PageSize+1 runs, newest first
func (s *Storage) ListRuns(ctx context.Context, filter RunFilter) ([]*model.TrainingRun, error) {
	query := `SELECT ` + runColumns + ` FROM training_runs WHERE 1=1`
	args := []interface{}{}

	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Cursor != nil {
		at := filter.Cursor.CreatedAt.UTC()
		query += " AND (created_at < ? OR (created_at = ? AND run_id < ?))"
		args = append(args, at, at, filter.Cursor.RunID)
	}
	query += " ORDER BY created_at DESC, run_id DESC LIMIT ?"
	args = append(args, filter.PageSize+1)

	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list training runs: %w", err)
	}

	runs := make([]*model.TrainingRun, len(rows))
	for i := range rows {
		runs[i] = rows[i].toModel()
	}
	return runs, nil
}

// ClaimRun moves a PENDING run to RUNNING for workerID. Only one claimer
// can win; the others get ErrRunAlreadyClaimed.
func (s *Storage) ClaimRun(ctx context.Context, runID, workerID string) (*model.TrainingRun, error) {
	now := s.now()
	query := s.db.Rebind(`
		UPDATE training_runs
		SET status = ?,
		    worker_id = ?,
		    started_at = ?,
		    last_heartbeat_at = ?,
		    updated_at = ?
		WHERE run_id = ?
		  AND status = ?
	`)

	result, err := s.db.ExecContext(ctx, query,
		model.RunStatusRunning, workerID, now, now, now, runID, model.RunStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to claim training run: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		s.logger.Warn("Failed to claim training run - already claimed or not found",
			slog.String("run_id", runID),
			slog.String("worker_id", workerID),
		)
		return nil, ErrRunAlreadyClaimed
	}

	s.logger.Info("Training run claimed successfully",
		slog.String("run_id", runID),
		slog.String("worker_id", workerID),
	)
	return s.GetRun(ctx, runID)
}

// UpdateRunStatus records a final or intermediate status with an optional
// JSON result and error message
func (s *Storage) UpdateRunStatus(ctx context.Context, runID, status string, result any, errorMsg string) error {
	var resultJSON sql.NullString
	if result != nil {
		raw, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		resultJSON = sql.NullString{String: string(raw), Valid: true}
	}

	now := s.now()
	var completedAt sqlTime
	if status == model.RunStatusCompleted || status == model.RunStatusFailed {
		completedAt = sqlTime{Time: now, Valid: true}
	}

	query := s.db.Rebind(`
		UPDATE training_runs
		SET status = ?,
			result = ?,
			error_message = ?,
			completed_at = ?,
			updated_at = ?
		WHERE run_id = ?
	`)
	res, err := s.db.ExecContext(ctx, query, status, resultJSON, errorMsg, completedAt, now, runID)
	if err != nil {
		return fmt.Errorf("failed to update training run status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrRunNotFound
	}

	s.logger.Info("Training run status updated",
		slog.String("run_id", runID),
		slog.String("status", status),
	)
	return nil
}

// ReleaseRun hands a RUNNING run back to PENDING and counts the retry, so
// a redelivered message can claim it again.
func (s *Storage) ReleaseRun(ctx context.Context, runID, errorMsg string) error {
	query := s.db.Rebind(`
		UPDATE training_runs
		SET status = ?,
			retry_count = retry_count + 1,
			worker_id = NULL,
			error_message = ?,
			updated_at = ?
		WHERE run_id = ? AND status = ?
	`)
	if _, err := s.db.ExecContext(ctx, query,
		model.RunStatusPending, errorMsg, s.now(), runID, model.RunStatusRunning); err != nil {
		return fmt.Errorf("failed to release training run: %w", err)
	}
	return nil
}

// UpdateRunHeartbeat updates last_heartbeat_at for a running run
func (s *Storage) UpdateRunHeartbeat(ctx context.Context, runID string) error {
	now := s.now()
	query := s.db.Rebind(`
		UPDATE training_runs
		SET last_heartbeat_at = ?,
		    updated_at = ?
		WHERE run_id = ? AND status = ?
	`)

	result, err := s.db.ExecContext(ctx, query, now, now, runID, model.RunStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to update training run heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		s.logger.Warn("Training run heartbeat update - no rows affected (run may not be running)",
			slog.String("run_id", runID),
		)
	}
	return nil
}
