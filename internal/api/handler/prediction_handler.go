package handler

import (
	"log/slog"
	"maps"
	"net/http"

	"github.com/cuongbtq/job-triage/internal/api/dto"
	"github.com/cuongbtq/job-triage/internal/evaluation"
	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/gin-gonic/gin"
)

// Predict handles POST /api/v1/predictions
// Runs a prediction cycle synchronously, training inline when required
func (h *PredictionHandler) Predict(c *gin.Context) {
	var req dto.PredictRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.logger.Error("Invalid request body", slog.String("error", err.Error()))
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}
	}

	opts := h.defaults
	opts.ToPredict = maps.Clone(h.defaults.ToPredict)
	if req.Retrain != nil {
		opts.Retrain = *req.Retrain
	}
	if req.NJobs != nil {
		opts.NJobs = *req.NJobs
	}
	if req.WindowDays != nil {
		opts.WindowDays = *req.WindowDays
	}
	if len(req.ToPredict) > 0 {
		if opts.ToPredict == nil {
			opts.ToPredict = make(map[model.Label]bool, len(req.ToPredict))
		}
		for name, on := range req.ToPredict {
			l, err := model.ParseLabel(name)
			if err != nil || !l.IsTerminal() {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unknown to_predict label: " + name})
				return
			}
			opts.ToPredict[l] = on
		}
	}

	result, err := h.predictor.Predict(c.Request.Context(), opts)
	if err != nil {
		respondError(c, h.logger, "Prediction failed", err)
		return
	}

	resp := *result
	if !req.IncludePlots && resp.Report != nil {
		resp.Report = withoutPlots(resp.Report)
	}

	c.JSON(http.StatusOK, resp)
}

// GetReport handles GET /api/v1/model/report
func (h *PredictionHandler) GetReport(c *gin.Context) {
	var req dto.ReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	report, err := h.reports.LoadReport(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to load report", err)
		return
	}

	if !req.IncludePlots {
		report = withoutPlots(report)
	}
	c.JSON(http.StatusOK, report)
}

// GetPlot handles GET /api/v1/model/plots/:name and serves the PNG
func (h *PredictionHandler) GetPlot(c *gin.Context) {
	report, err := h.reports.LoadReport(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "Failed to load report", err)
		return
	}

	png, ok := report.Plots[c.Param("name")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "plot not found"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func withoutPlots(r *evaluation.Report) *evaluation.Report {
	cp := *r
	cp.Plots = nil
	return &cp
}
