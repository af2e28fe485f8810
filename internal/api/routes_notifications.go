package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campus/internal/handlers"
	"github.com/charlesng35/campus/internal/middleware"
	"github.com/charlesng35/campus/internal/models"
)

// Per-user routes check ownership in the handler; admins may act on anyone.
func registerNotificationRoutes(api *gin.RouterGroup, handler *handlers.NotificationHandler) {
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	group := api.Group("/notifications")
	{
		group.GET("", handler.ListMine)
		group.POST("", adminOnly, handler.Create)
		group.GET("/user/:id", handler.ListForUser)
		group.GET("/user/:id/unread", handler.ListUnread)
		group.PUT("/user/:id/read-all", handler.MarkAllRead)
		group.PUT("/:id/read", handler.MarkRead)
		group.DELETE("/:id", handler.Delete)
		group.POST("/:id/resend", adminOnly, handler.Resend)
	}
}
