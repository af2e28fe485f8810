package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campus/internal/monitoring"
	"github.com/charlesng35/campus/pkg/response"
)

// Health returns a simple status payload useful for liveness checks.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	}
}

// Readiness evaluates the readiness probes; any component down answers 503.
func Readiness(manager *monitoring.HealthManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := manager.EvaluateReadiness(requestContext(c))

		code := http.StatusOK
		if !report.Success {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, response.Response{Success: report.Success, Data: report})
	}
}
