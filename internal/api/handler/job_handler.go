package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/cuongbtq/job-triage/internal/api/dto"
	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/cuongbtq/job-triage/internal/storage"
	"github.com/gin-gonic/gin"
)

// UpsertJobs handles POST /api/v1/jobs
// Ingests a batch of postings; refetched postings keep their operator label
func (h *JobHandler) UpsertJobs(c *gin.Context) {
	var req dto.UpsertJobsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	records := make([]model.JobRecord, len(req.Jobs))
	for i, in := range req.Jobs {
		records[i] = in.ToModel()
	}

	n, err := h.jobs.UpsertJobs(c.Request.Context(), records)
	if err != nil {
		respondError(c, h.logger, "Failed to upsert jobs", err)
		return
	}

	c.JSON(http.StatusOK, dto.UpsertJobsResponse{Upserted: n})
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	job, err := h.jobs.GetJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, h.logger, "Failed to get job", err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs newest first, optionally filtered by label, with cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	labels, err := parseLabels(req.Labels)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	size := pageSize(req.PageSize)

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	jobs, err := h.jobs.ListJobs(c.Request.Context(), storage.JobFilter{
		Labels:   labels,
		PageSize: size,
		Cursor:   cursor,
	})
	if err != nil {
		respondError(c, h.logger, "Failed to list jobs", err)
		return
	}

	hasMore := len(jobs) > size
	if hasMore {
		jobs = jobs[:size]
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{DateCreated: last.DateCreated, ID: last.ID})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobs,
		NextCursor: nextCursor,
	})
}

// CountJobs handles GET /api/v1/jobs/count
func (h *JobHandler) CountJobs(c *gin.Context) {
	counts, err := h.jobs.CountLabels(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to count jobs", err)
		return
	}

	c.JSON(http.StatusOK, counts)
}

// UpdateLabel handles PATCH /api/v1/jobs/:job_id/label
// Only Uncategorized records can be labelled, and only with a terminal label
func (h *JobHandler) UpdateLabel(c *gin.Context) {
	jobID := c.Param("job_id")

	var req dto.UpdateLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	label, err := model.ParseLabel(req.Label)
	if err != nil {
		respondError(c, h.logger, "Invalid label", err)
		return
	}

	job, err := h.jobs.UpdateLabel(c.Request.Context(), jobID, label)
	if err != nil {
		respondError(c, h.logger, "Failed to update label", err)
		return
	}

	h.logger.Info("Job labelled via API",
		slog.String("job_id", jobID),
		slog.String("label", label.String()),
	)
	c.JSON(http.StatusOK, job)
}

// parseLabels accepts repeated and comma-separated label parameters
func parseLabels(raw []string) ([]model.Label, error) {
	var labels []model.Label
	for _, r := range raw {
		for _, s := range strings.Split(r, ",") {
			if s = strings.TrimSpace(s); s == "" {
				continue
			}
			l, err := model.ParseLabel(s)
			if err != nil {
				return nil, err
			}
			labels = append(labels, l)
		}
	}
	return labels, nil
}
