package dto

import "github.com/cuongbtq/job-triage/internal/model"

type CreateRunResponse struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
}

type ListRunsRequest struct {
	Status   string `form:"status" binding:"omitempty,oneof=PENDING RUNNING COMPLETED FAILED"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListRunsResponse struct {
	Runs       []*model.TrainingRun `json:"runs"`
	NextCursor string               `json:"next_cursor,omitempty"`
}
