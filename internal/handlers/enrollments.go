package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campus/internal/services"
	"github.com/charlesng35/campus/pkg/response"
)

// EnrollmentHandler lets students join and leave courses and staff record grades.
type EnrollmentHandler struct {
	enrollments *services.EnrollmentService
}

func NewEnrollmentHandler(enrollments *services.EnrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

type enrollRequest struct {
	CourseID uint64 `json:"course_id" validate:"required"`
}

type gradeRequest struct {
	Grade   *float64 `json:"grade" validate:"required,gte=0,lte=100"`
	Remarks string   `json:"remarks" validate:"max=2000"`
}

// POST /api/enrollments
func (h *EnrollmentHandler) Enroll(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	var req enrollRequest
	if !bindAndValidate(c, &req) {
		return
	}
	enrollment, err := h.enrollments.Enroll(requestContext(c), userID, req.CourseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, enrollment)
}

// DELETE /api/enrollments/:courseId
func (h *EnrollmentHandler) Drop(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	courseID, ok := parseIDParam(c, "courseId")
	if !ok {
		return
	}
	if err := h.enrollments.Drop(requestContext(c), userID, courseID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"dropped": true})
}

// GET /api/enrollments/me
func (h *EnrollmentHandler) ListMine(c *gin.Context) {
	userID, _, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.enrollments.ListForUser(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{Total: len(items)})
}

// POST /api/enrollments/:id/grade
func (h *EnrollmentHandler) Grade(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req gradeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	enrollment, err := h.enrollments.RecordGrade(requestContext(c), id, *req.Grade, req.Remarks)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, enrollment)
}
