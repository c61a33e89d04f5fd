package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/industria-elearning/assign-ai/internal/models"
)

// AssignmentRepository reads the host's assignment and grading definitions.
type AssignmentRepository interface {
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.WithContext(ctx).
		Preload("RubricCriteria", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Preload("RubricCriteria.Levels", func(db *gorm.DB) *gorm.DB {
			return db.Order("points ASC")
		}).
		Preload("GuideCriteria", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		First(&assignment, id).Error; err != nil {
		return models.Assignment{}, err
	}

	return assignment, nil
}
