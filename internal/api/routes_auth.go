package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campus/internal/handlers"
)

func registerAuthRoutes(engine *gin.Engine, api *gin.RouterGroup, handler *handlers.AuthHandler, limiter gin.HandlerFunc) {
	public := engine.Group("/api/auth")
	public.Use(limiter)
	{
		public.POST("/login", handler.Login)
		public.POST("/register", handler.Register)
	}

	api.GET("/auth/info", handler.Info)
	api.PUT("/auth/password", handler.ChangePassword)
}
