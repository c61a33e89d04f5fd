package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/industria-elearning/assign-ai/internal/models"
)

// AssignmentConfigRepository persists per-assignment AI review settings.
type AssignmentConfigRepository interface {
	Get(ctx context.Context, assignmentID uint) (models.AssignmentConfig, error)
	Upsert(ctx context.Context, config *models.AssignmentConfig) error
	DeleteForAssignment(ctx context.Context, assignmentID uint) error
}

type assignmentConfigRepository struct {
	db *gorm.DB
}

// NewAssignmentConfigRepository instantiates a GORM-backed repository.
func NewAssignmentConfigRepository(db *gorm.DB) AssignmentConfigRepository {
	return &assignmentConfigRepository{db: db}
}

func (r *assignmentConfigRepository) Get(ctx context.Context, assignmentID uint) (models.AssignmentConfig, error) {
	var config models.AssignmentConfig
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		First(&config).Error; err != nil {
		return models.AssignmentConfig{}, err
	}

	return config, nil
}

func (r *assignmentConfigRepository) Upsert(ctx context.Context, config *models.AssignmentConfig) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "assignment_id"}},
			UpdateAll: true,
		}).
		Create(config).Error
}

func (r *assignmentConfigRepository) DeleteForAssignment(ctx context.Context, assignmentID uint) error {
	return r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Delete(&models.AssignmentConfig{}).Error
}
