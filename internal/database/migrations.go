package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/campus/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Role{},
		&models.User{},
		&models.Course{},
		&models.Enrollment{},
		&models.Notification{},
		&models.RateCounter{},
	)
}

// SeedData creates the built-in roles. Existing rows are left untouched.
func SeedData(db *gorm.DB) error {
	roles := []models.Role{
		{Name: models.RoleAdmin, Description: "Full administrative access"},
		{Name: models.RoleTeacher, Description: "Manages courses and grades"},
		{Name: models.RoleStudent, Description: "Enrols in courses"},
	}

	for _, role := range roles {
		if err := db.Where(models.Role{Name: role.Name}).Attrs(role).FirstOrCreate(&models.Role{}).Error; err != nil {
			return err
		}
	}
	return nil
}
