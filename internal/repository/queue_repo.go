package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/industria-elearning/assign-ai/internal/models"
)

// ReviewQueueRepository defines data operations for the delayed review queue.
type ReviewQueueRepository interface {
	// Enqueue deletes any unprocessed item sharing the same logical key
	// before inserting, keeping at most one item in flight per pair.
	Enqueue(ctx context.Context, item *models.ReviewQueueItem) error
	ClaimDue(ctx context.Context, reference time.Time, limit int) ([]models.ReviewQueueItem, error)
	MarkProcessed(ctx context.Context, id uint) error
	DeleteForPair(ctx context.Context, assignmentID, studentID uint) error
	DeleteForAssignment(ctx context.Context, assignmentID uint) error
	CountUnprocessed(ctx context.Context) (int64, error)
}

type reviewQueueRepository struct {
	db *gorm.DB
}

// NewReviewQueueRepository instantiates a GORM-backed queue repository.
func NewReviewQueueRepository(db *gorm.DB) ReviewQueueRepository {
	return &reviewQueueRepository{db: db}
}

func (r *reviewQueueRepository) Enqueue(ctx context.Context, item *models.ReviewQueueItem) error {
	if item.Type == "" {
		item.Type = models.QueueItemTypeSubmission
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("type = ?", item.Type).
			Where("assignment_id = ?", item.AssignmentID).
			Where("student_id = ?", item.StudentID).
			Where("processed = ?", false).
			Delete(&models.ReviewQueueItem{}).Error; err != nil {
			return err
		}

		return tx.Create(item).Error
	})
}

func (r *reviewQueueRepository) ClaimDue(ctx context.Context, reference time.Time, limit int) ([]models.ReviewQueueItem, error) {
	var items []models.ReviewQueueItem
	if err := r.db.WithContext(ctx).
		Where("processed = ?", false).
		Where("process_after <= ?", reference).
		Order("process_after ASC").
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}

	return items, nil
}

func (r *reviewQueueRepository) MarkProcessed(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.ReviewQueueItem{}).
		Where("id = ?", id).
		Update("processed", true).Error
}

func (r *reviewQueueRepository) DeleteForPair(ctx context.Context, assignmentID, studentID uint) error {
	return r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		Where("processed = ?", false).
		Delete(&models.ReviewQueueItem{}).Error
}

func (r *reviewQueueRepository) DeleteForAssignment(ctx context.Context, assignmentID uint) error {
	return r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Delete(&models.ReviewQueueItem{}).Error
}

func (r *reviewQueueRepository) CountUnprocessed(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ReviewQueueItem{}).
		Where("processed = ?", false).
		Count(&count).Error; err != nil {
		return 0, err
	}

	return count, nil
}
