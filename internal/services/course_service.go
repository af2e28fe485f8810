package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/database"
	"github.com/charlesng35/campus/internal/models"
	apperrors "github.com/charlesng35/campus/pkg/errors"
)

// CreateCourseInput describes a new course.
type CreateCourseInput struct {
	Code        string
	Name        string
	Credits     float64
	Semester    string
	Description string
	Capacity    int
	TeacherID   *uint64
}

// CourseService manages the course catalogue.
type CourseService struct {
	db *gorm.DB
}

func NewCourseService(db *gorm.DB) (*CourseService, error) {
	if db == nil {
		return nil, errors.New("course service: db is required")
	}
	return &CourseService{db: db}, nil
}

// Create adds a course. Codes are unique.
func (s *CourseService) Create(ctx context.Context, input CreateCourseInput) (*models.Course, error) {
	ctx = ensureContext(ctx)
	code := strings.ToUpper(strings.TrimSpace(input.Code))
	name := strings.TrimSpace(input.Name)
	if code == "" || name == "" {
		return nil, apperrors.NewBadRequest("course code and name are required")
	}
	if input.Capacity < 0 || input.Credits < 0 {
		return nil, apperrors.NewBadRequest("capacity and credits must not be negative")
	}

	course := models.Course{
		Code:        code,
		Name:        name,
		Credits:     input.Credits,
		Semester:    strings.TrimSpace(input.Semester),
		Description: strings.TrimSpace(input.Description),
		Capacity:    input.Capacity,
		TeacherID:   input.TeacherID,
	}

	db := database.Conn(ctx, s.db)
	if course.TeacherID != nil {
		var teacher models.User
		if err := db.Preload("Roles").Take(&teacher, "id = ?", *course.TeacherID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.NewNotFound("teacher")
			}
			return nil, fmt.Errorf("course service: load teacher: %w", err)
		}
		if !teacher.HasRole(models.RoleTeacher) {
			return nil, apperrors.NewBadRequest("assigned user is not a teacher")
		}
	}

	if err := db.Create(&course).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrConflict
		}
		return nil, fmt.Errorf("course service: create course: %w", err)
	}
	return &course, nil
}

// Get loads a course by id.
func (s *CourseService) Get(ctx context.Context, id uint64) (*models.Course, error) {
	var course models.Course
	err := database.Conn(ensureContext(ctx), s.db).Take(&course, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewNotFound("course")
	}
	if err != nil {
		return nil, fmt.Errorf("course service: get course: %w", err)
	}
	return &course, nil
}

// List returns courses ordered by code, optionally limited to one semester.
func (s *CourseService) List(ctx context.Context, semester string, opts ListOptions) ([]models.Course, error) {
	opts = opts.normalise()
	query := database.Conn(ensureContext(ctx), s.db).Model(&models.Course{})
	if semester = strings.TrimSpace(semester); semester != "" {
		query = query.Where("semester = ?", semester)
	}

	var courses []models.Course
	if err := query.Order("code ASC").Limit(opts.Limit).Offset(opts.Offset).Find(&courses).Error; err != nil {
		return nil, fmt.Errorf("course service: list courses: %w", err)
	}
	return courses, nil
}
