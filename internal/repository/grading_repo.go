package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/industria-elearning/assign-ai/internal/models"
)

// GradingRepository persists grade records and their rubric/guide fills.
type GradingRepository interface {
	GetOrCreate(ctx context.Context, assignmentID, studentID uint) (models.GradeRecord, error)
	GetByPair(ctx context.Context, assignmentID, studentID uint) (models.GradeRecord, error)
	Update(ctx context.Context, record *models.GradeRecord) error
	UpsertRubricFill(ctx context.Context, fill *models.RubricFill) error
	UpsertGuideFill(ctx context.Context, fill *models.GuideFill) error
}

type gradingRepository struct {
	db *gorm.DB
}

// NewGradingRepository instantiates a GORM-backed repository.
func NewGradingRepository(db *gorm.DB) GradingRepository {
	return &gradingRepository{db: db}
}

func (r *gradingRepository) baseQuery(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.GradeRecord{}).
		Preload("RubricFills").
		Preload("GuideFills")
}

func (r *gradingRepository) GetOrCreate(ctx context.Context, assignmentID, studentID uint) (models.GradeRecord, error) {
	record, err := r.GetByPair(ctx, assignmentID, studentID)
	if err == nil {
		return record, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.GradeRecord{}, err
	}

	record = models.GradeRecord{AssignmentID: assignmentID, StudentID: studentID}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		return models.GradeRecord{}, err
	}

	return record, nil
}

func (r *gradingRepository) GetByPair(ctx context.Context, assignmentID, studentID uint) (models.GradeRecord, error) {
	var record models.GradeRecord
	if err := r.baseQuery(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		First(&record).Error; err != nil {
		return models.GradeRecord{}, err
	}

	return record, nil
}

func (r *gradingRepository) Update(ctx context.Context, record *models.GradeRecord) error {
	return r.db.WithContext(ctx).Omit("RubricFills", "GuideFills").Save(record).Error
}

func (r *gradingRepository) UpsertRubricFill(ctx context.Context, fill *models.RubricFill) error {
	var existing models.RubricFill
	err := r.db.WithContext(ctx).
		Where("grade_record_id = ?", fill.GradeRecordID).
		Where("criterion_id = ?", fill.CriterionID).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.WithContext(ctx).Create(fill).Error
		}
		return err
	}

	existing.LevelID = fill.LevelID
	existing.Remark = fill.Remark
	fill.ID = existing.ID

	return r.db.WithContext(ctx).Save(&existing).Error
}

func (r *gradingRepository) UpsertGuideFill(ctx context.Context, fill *models.GuideFill) error {
	var existing models.GuideFill
	err := r.db.WithContext(ctx).
		Where("grade_record_id = ?", fill.GradeRecordID).
		Where("criterion_id = ?", fill.CriterionID).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return r.db.WithContext(ctx).Create(fill).Error
		}
		return err
	}

	existing.Score = fill.Score
	existing.Remark = fill.Remark
	fill.ID = existing.ID

	return r.db.WithContext(ctx).Save(&existing).Error
}
