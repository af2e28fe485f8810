package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campus/internal/handlers"
	"github.com/charlesng35/campus/internal/middleware"
	"github.com/charlesng35/campus/internal/models"
)

func registerUserRoutes(api *gin.RouterGroup, handler *handlers.UserHandler) {
	users := api.Group("/users")
	users.Use(middleware.RequireRole(models.RoleAdmin))
	{
		users.GET("", handler.List)
		users.PUT("/:id/status", handler.SetStatus)
	}
}
