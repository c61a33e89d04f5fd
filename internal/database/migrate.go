package database

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/industria-elearning/assign-ai/internal/models"
)

// Migrate applies the schema for every persisted model.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Assignment{},
		&models.RubricCriterion{},
		&models.RubricLevel{},
		&models.GuideCriterion{},
		&models.Student{},
		&models.Submission{},
		&models.GradeRecord{},
		&models.RubricFill{},
		&models.GuideFill{},
		&models.AssignmentConfig{},
		&models.PendingReview{},
		&models.ReviewQueueItem{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	return nil
}
