package models

import (
	"time"
)

// Enrollment lifecycle states.
const (
	EnrollmentEnrolled  = "ENROLLED"
	EnrollmentDropped   = "DROPPED"
	EnrollmentCompleted = "COMPLETED"
)

// Enrollment links a student to a course. A dropped enrollment can be
// reactivated, so the (user, course) pair stays unique.
type Enrollment struct {
	BaseModel

	UserID   uint64  `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"user_id"`
	User     *User   `json:"user,omitempty"`
	CourseID uint64  `gorm:"not null;uniqueIndex:idx_enrollment_user_course" json:"course_id"`
	Course   *Course `json:"course,omitempty"`

	Status     string    `gorm:"size:16;not null;default:'ENROLLED';index" json:"status"`
	EnrolledAt time.Time `json:"enrolled_at"`
	Grade      *float64  `json:"grade"`
	Remarks    string    `gorm:"type:text" json:"remarks"`
}
