package handler

import (
	"log/slog"
	"net/http"

	"github.com/cuongbtq/job-triage/internal/api/dto"
	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/cuongbtq/job-triage/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateRun handles POST /api/v1/training-runs
// Records a PENDING run and hands it to the worker queue
func (h *RunHandler) CreateRun(c *gin.Context) {
	run := &model.TrainingRun{
		RunID:          uuid.New().String(),
		Trigger:        model.TriggerAPI,
		MaxRetries:     h.defaults.MaxRetries,
		TimeoutSeconds: int(h.defaults.Timeout.Seconds()),
	}

	if err := h.runs.CreateRun(c.Request.Context(), run); err != nil {
		respondError(c, h.logger, "Failed to create training run", err)
		return
	}

	msg := model.RunMessage{RunID: run.RunID}
	if err := h.publisher.PublishJSON(c.Request.Context(), run.RunID, msg); err != nil {
		// the run stays PENDING; the scheduler or a new request can retry it
		respondError(c, h.logger, "Failed to enqueue training run", err)
		return
	}

	h.logger.Info("Training run enqueued", slog.String("run_id", run.RunID))
	c.JSON(http.StatusAccepted, dto.CreateRunResponse{
		RunID:  run.RunID,
		Status: run.Status,
	})
}

// GetRun handles GET /api/v1/training-runs/:run_id
func (h *RunHandler) GetRun(c *gin.Context) {
	runID := c.Param("run_id")
	if _, err := uuid.Parse(runID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "run_id must be a valid UUID",
		})
		return
	}

	run, err := h.runs.GetRun(c.Request.Context(), runID)
	if err != nil {
		respondError(c, h.logger, "Failed to get training run", err)
		return
	}

	c.JSON(http.StatusOK, run)
}

// ListRuns handles GET /api/v1/training-runs
func (h *RunHandler) ListRuns(c *gin.Context) {
	var req dto.ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	size := pageSize(req.PageSize)

	cursor, err := DecodeRunCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	runs, err := h.runs.ListRuns(c.Request.Context(), storage.RunFilter{
		Status:   req.Status,
		PageSize: size,
		Cursor:   cursor,
	})
	if err != nil {
		respondError(c, h.logger, "Failed to list training runs", err)
		return
	}

	hasMore := len(runs) > size
	if hasMore {
		runs = runs[:size]
	}

	var nextCursor string
	if hasMore {
		last := runs[len(runs)-1]
		nextCursor = EncodeRunCursor(&storage.RunCursor{CreatedAt: last.CreatedAt, RunID: last.RunID})
	}

	c.JSON(http.StatusOK, dto.ListRunsResponse{
		Runs:       runs,
		NextCursor: nextCursor,
	})
}
