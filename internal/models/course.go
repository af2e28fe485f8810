package models

// Course is a teachable unit students enrol into.
type Course struct {
	BaseModel

	Code        string  `gorm:"uniqueIndex;size:32;not null" json:"code"`
	Name        string  `gorm:"size:255;not null" json:"name"`
	Credits     float64 `gorm:"not null;default:0" json:"credits"`
	Semester    string  `gorm:"size:16;index" json:"semester"`
	Description string  `gorm:"type:text" json:"description"`
	Capacity    int     `gorm:"not null;default:0" json:"capacity"`

	TeacherID *uint64 `gorm:"index" json:"teacher_id"`
	Teacher   *User   `json:"teacher,omitempty"`
}
