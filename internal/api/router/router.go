package router

import (
	"github.com/cuongbtq/job-triage/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(service string, deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	r.GET("/health", handler.Health(service, deps.DB, deps.Broker))

	jobHandler := handler.NewJobHandler(deps)
	predictionHandler := handler.NewPredictionHandler(deps)
	runHandler := handler.NewRunHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Ingest a batch of postings
			jobs.POST("", jobHandler.UpsertJobs)

			// GET /api/v1/jobs - List jobs with label filter and pagination
			jobs.GET("", jobHandler.ListJobs)

			// GET /api/v1/jobs/count - Labelled and per-label counts
			jobs.GET("/count", jobHandler.CountJobs)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// PATCH /api/v1/jobs/:job_id/label - Operator labelling
			jobs.PATCH("/:job_id/label", jobHandler.UpdateLabel)
		}

		v1.POST("/predictions", predictionHandler.Predict)

		mdl := v1.Group("/model")
		{
			mdl.GET("/report", predictionHandler.GetReport)
			mdl.GET("/plots/:name", predictionHandler.GetPlot)
		}

		runs := v1.Group("/training-runs")
		{
			runs.POST("", runHandler.CreateRun)
			runs.GET("", runHandler.ListRuns)
			runs.GET("/:run_id", runHandler.GetRun)
		}
	}

	return r
}
