package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campus/internal/handlers"
	"github.com/charlesng35/campus/internal/monitoring"
)

func registerHealthRoutes(r *gin.Engine, health *monitoring.HealthManager) {
	r.GET("/health", handlers.Health())
	r.GET("/health/live", handlers.Health())
	r.GET("/health/ready", handlers.Readiness(health))
}
