package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campus/internal/handlers"
	"github.com/charlesng35/campus/internal/middleware"
	"github.com/charlesng35/campus/internal/models"
)

func registerCourseRoutes(api *gin.RouterGroup, courses *handlers.CourseHandler, enrollments *handlers.EnrollmentHandler) {
	staff := middleware.RequireRole(models.RoleAdmin, models.RoleTeacher)

	group := api.Group("/courses")
	{
		group.GET("", courses.List)
		group.GET("/:id", courses.Get)
		group.POST("", staff, courses.Create)
	}

	enrol := api.Group("/enrollments")
	{
		enrol.POST("", enrollments.Enroll)
		enrol.GET("/me", enrollments.ListMine)
		enrol.DELETE("/:courseId", enrollments.Drop)
		enrol.POST("/:id/grade", staff, enrollments.Grade)
	}
}
