package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/database"
	"github.com/charlesng35/campus/internal/models"
	apperrors "github.com/charlesng35/campus/pkg/errors"
)

var (
	ErrAlreadyEnrolled = apperrors.New("ALREADY_ENROLLED", "Already enrolled in this course", http.StatusConflict)
	ErrCourseFull      = apperrors.New("COURSE_FULL", "Course has reached capacity", http.StatusConflict)
	ErrNotEnrolled     = apperrors.New("NOT_ENROLLED", "Not enrolled in this course", http.StatusNotFound)
)

// EnrollmentService records students joining, leaving and completing courses.
// Each change and the notification describing it commit together.
type EnrollmentService struct {
	db            *gorm.DB
	notifications *NotificationService
	now           func() time.Time
}

func NewEnrollmentService(db *gorm.DB, notifications *NotificationService) (*EnrollmentService, error) {
	if db == nil || notifications == nil {
		return nil, errors.New("enrollment service: db and notification service are required")
	}
	return &EnrollmentService{db: db, notifications: notifications, now: time.Now}, nil
}

// Enroll adds the student to the course, reactivating a dropped enrollment.
func (s *EnrollmentService) Enroll(ctx context.Context, userID, courseID uint64) (*models.Enrollment, error) {
	ctx = ensureContext(ctx)
	var enrollment models.Enrollment

	err := database.WithTransaction(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		var course models.Course
		if err := tx.Take(&course, "id = ?", courseID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("course")
			}
			return err
		}

		now := s.now().UTC()
		err := tx.Where("user_id = ? AND course_id = ?", userID, courseID).Take(&enrollment).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := s.ensureSeat(tx, course); err != nil {
				return err
			}
			enrollment = models.Enrollment{
				UserID:     userID,
				CourseID:   courseID,
				Status:     models.EnrollmentEnrolled,
				EnrolledAt: now,
			}
			if err := tx.Create(&enrollment).Error; err != nil {
				if isUniqueConstraintError(err) {
					return ErrAlreadyEnrolled
				}
				return err
			}
		case err != nil:
			return err
		case enrollment.Status != models.EnrollmentDropped:
			return ErrAlreadyEnrolled
		default:
			if err := s.ensureSeat(tx, course); err != nil {
				return err
			}
			enrollment.Status = models.EnrollmentEnrolled
			enrollment.EnrolledAt = now
			if err := tx.Model(&enrollment).Updates(map[string]any{
				"status":      enrollment.Status,
				"enrolled_at": now,
			}).Error; err != nil {
				return err
			}
		}

		_, err = s.notifications.Create(ctx, CreateNotificationInput{
			UserID:  &userID,
			Type:    models.NotificationTypeCourse,
			Title:   "Enrollment confirmed",
			Content: fmt.Sprintf("You are enrolled in %s %s.", course.Code, course.Name),
		})
		return err
	})
	if err != nil {
		return nil, wrapEnrollmentError("enroll", err)
	}
	return &enrollment, nil
}

// ensureSeat fails with ErrCourseFull when a capped course has no free seat.
func (s *EnrollmentService) ensureSeat(tx *gorm.DB, course models.Course) error {
	if course.Capacity <= 0 {
		return nil
	}
	var active int64
	if err := tx.Model(&models.Enrollment{}).
		Where("course_id = ? AND status = ?", course.ID, models.EnrollmentEnrolled).
		Count(&active).Error; err != nil {
		return err
	}
	if active >= int64(course.Capacity) {
		return ErrCourseFull
	}
	return nil
}

// Drop withdraws the student from the course.
func (s *EnrollmentService) Drop(ctx context.Context, userID, courseID uint64) error {
	ctx = ensureContext(ctx)
	err := database.WithTransaction(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		result := tx.Model(&models.Enrollment{}).
			Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, models.EnrollmentEnrolled).
			Update("status", models.EnrollmentDropped)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotEnrolled
		}

		var course models.Course
		if err := tx.Take(&course, "id = ?", courseID).Error; err != nil {
			return err
		}
		_, err := s.notifications.Create(ctx, CreateNotificationInput{
			UserID:  &userID,
			Type:    models.NotificationTypeCourse,
			Title:   "Course dropped",
			Content: fmt.Sprintf("You have dropped %s %s.", course.Code, course.Name),
		})
		return err
	})
	return wrapEnrollmentError("drop", err)
}

// ListForUser returns the student's enrollments with their courses.
func (s *EnrollmentService) ListForUser(ctx context.Context, userID uint64) ([]models.Enrollment, error) {
	var rows []models.Enrollment
	if err := database.Conn(ensureContext(ctx), s.db).
		Preload("Course").
		Where("user_id = ?", userID).
		Order("enrolled_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("enrollment service: list: %w", err)
	}
	return rows, nil
}

// RecordGrade completes the enrollment with a grade and tells the student.
func (s *EnrollmentService) RecordGrade(ctx context.Context, enrollmentID uint64, grade float64, remarks string) (*models.Enrollment, error) {
	if grade < 0 || grade > 100 {
		return nil, apperrors.NewBadRequest("grade must be between 0 and 100")
	}
	ctx = ensureContext(ctx)

	var enrollment models.Enrollment
	err := database.WithTransaction(ctx, s.db, func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.Preload("Course").Take(&enrollment, "id = ?", enrollmentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewNotFound("enrollment")
			}
			return err
		}
		if enrollment.Status == models.EnrollmentDropped {
			return apperrors.NewBadRequest("cannot grade a dropped enrollment")
		}

		enrollment.Grade = &grade
		enrollment.Remarks = remarks
		enrollment.Status = models.EnrollmentCompleted
		if err := tx.Model(&enrollment).Updates(map[string]any{
			"grade":   grade,
			"remarks": remarks,
			"status":  enrollment.Status,
		}).Error; err != nil {
			return err
		}

		subject := "your course"
		if enrollment.Course != nil {
			subject = enrollment.Course.Code + " " + enrollment.Course.Name
		}
		_, err := s.notifications.Create(ctx, CreateNotificationInput{
			UserID:  &enrollment.UserID,
			Type:    models.NotificationTypeGrade,
			Title:   "Grade posted",
			Content: fmt.Sprintf("Your grade for %s is %.1f.", subject, grade),
		})
		return err
	})
	if err != nil {
		return nil, wrapEnrollmentError("record grade", err)
	}
	return &enrollment, nil
}

func wrapEnrollmentError(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return fmt.Errorf("enrollment service: %s: %w", op, err)
}
