package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/job-triage/internal/model"
	"github.com/cuongbtq/job-triage/internal/prediction"
	"github.com/cuongbtq/job-triage/internal/storage"
	"github.com/cuongbtq/job-triage/internal/training"
	"github.com/gin-gonic/gin"
)

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrJobNotFound),
		errors.Is(err, storage.ErrRunNotFound),
		errors.Is(err, training.ErrArtifactNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidLabel),
		errors.Is(err, training.ErrInvalidDataset):
		return http.StatusUnprocessableEntity
	case errors.Is(err, prediction.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": msg}. Server errors hide the cause from the
// client and log it instead.
func respondError(c *gin.Context, logger *slog.Logger, msg string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(msg,
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
		c.JSON(status, gin.H{"error": msg})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
