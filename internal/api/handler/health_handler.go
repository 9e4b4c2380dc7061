package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health handles GET /health
// Reports unhealthy when the database does not answer or the broker
// connection is down. A nil broker is not checked.
func Health(service string, db HealthChecker, broker BrokerStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := gin.H{
			"status":   "healthy",
			"service":  service,
			"database": "ok",
		}

		if err := db.HealthCheck(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["database"] = err.Error()
		}
		if broker != nil {
			body["rabbitmq"] = "ok"
			if !broker.IsConnected() {
				status = http.StatusServiceUnavailable
				body["rabbitmq"] = "disconnected"
			}
		}

		if status != http.StatusOK {
			body["status"] = "unhealthy"
		}
		c.JSON(status, body)
	}
}
