package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Feedback{},
		&models.SiteCourseMap{},
		&models.Item{},
		&models.GradedQuestion{},
		&models.Template{},
		&models.ItemFile{},
		&models.Completed{},
		&models.CompletedTmp{},
		&models.Value{},
		&models.ValueTmp{},
		&models.Course{},
		&models.User{},
		&models.Enrolment{},
		&models.GroupMember{},
		&models.EventLog{},
	)
}
