package models

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

type Role struct {
	BaseModel

	Name        string `gorm:"uniqueIndex;size:32;not null" json:"name"`
	Description string `json:"description"`

	Users []User `gorm:"many2many:user_roles;" json:"-"`
}
