package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/campus/internal/services"
	"github.com/charlesng35/campus/pkg/response"
)

// CourseHandler exposes the course catalogue.
type CourseHandler struct {
	courses *services.CourseService
}

func NewCourseHandler(courses *services.CourseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

type createCourseRequest struct {
	Code        string  `json:"code" validate:"required,course_code"`
	Name        string  `json:"name" validate:"required,max=255"`
	Credits     float64 `json:"credits" validate:"gte=0,lte=30"`
	Semester    string  `json:"semester" validate:"omitempty,semester"`
	Description string  `json:"description"`
	Capacity    int     `json:"capacity" validate:"gte=0"`
	TeacherID   *uint64 `json:"teacher_id"`
}

// GET /api/courses
func (h *CourseHandler) List(c *gin.Context) {
	items, err := h.courses.List(requestContext(c), c.Query("semester"), services.ListOptions{
		Limit:  parseIntQuery(c, "limit", 25),
		Offset: parseIntQuery(c, "offset", 0),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.SuccessWithMeta(c, http.StatusOK, items, &response.Meta{Total: len(items)})
}

// GET /api/courses/:id
func (h *CourseHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	course, err := h.courses.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, course)
}

// POST /api/courses
func (h *CourseHandler) Create(c *gin.Context) {
	var req createCourseRequest
	if !bindAndValidate(c, &req) {
		return
	}
	course, err := h.courses.Create(requestContext(c), services.CreateCourseInput{
		Code:        req.Code,
		Name:        req.Name,
		Credits:     req.Credits,
		Semester:    req.Semester,
		Description: req.Description,
		Capacity:    req.Capacity,
		TeacherID:   req.TeacherID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, course)
}
