package model

import (
	"encoding/json"
	"time"
)

// Training run status constants
const (
	RunStatusPending   = "PENDING"
	RunStatusRunning   = "RUNNING"
	RunStatusCompleted = "COMPLETED"
	RunStatusFailed    = "FAILED"
)

// What created a training run
const (
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"
)

// TrainingRun tracks one asynchronous training cycle executed by the worker
type TrainingRun struct {
	RunID           string          `json:"run_id"`
	Trigger         string          `json:"trigger"`
	Status          string          `json:"status"`
	WorkerID        string          `json:"worker_id,omitempty"`
	RetryCount      int             `json:"retry_count"`
	MaxRetries      int             `json:"max_retries"`
	TimeoutSeconds  int             `json:"timeout_seconds"`
	Result          json.RawMessage `json:"result,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	LastHeartbeatAt *time.Time      `json:"last_heartbeat_at,omitempty"`
}

// IsFinal reports whether the run reached a terminal status
func (r *TrainingRun) IsFinal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

// RunMessage is the queue payload announcing a run to the worker
type RunMessage struct {
	RunID string `json:"run_id"`
}
