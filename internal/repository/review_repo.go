package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/industria-elearning/assign-ai/internal/models"
)

// PendingReviewRepository defines data operations for pending review records.
type PendingReviewRepository interface {
	// Latest resolves the live record for a pair. The ordering here is the
	// single authoritative definition of "latest" across the service.
	Latest(ctx context.Context, assignmentID, studentID uint) (models.PendingReview, error)
	ListForPair(ctx context.Context, assignmentID, studentID uint) ([]models.PendingReview, error)
	GetByToken(ctx context.Context, token string) (models.PendingReview, error)
	GetByID(ctx context.Context, id uint) (models.PendingReview, error)
	ListByIDs(ctx context.Context, ids []uint) ([]models.PendingReview, error)
	ListByStatus(ctx context.Context, assignmentID uint, status models.ReviewStatus) ([]models.PendingReview, error)
	Create(ctx context.Context, review *models.PendingReview) error
	Update(ctx context.Context, review *models.PendingReview) error
	Delete(ctx context.Context, id uint) error
	DeleteForPair(ctx context.Context, assignmentID, studentID uint, statuses ...models.ReviewStatus) error
	DeleteForAssignment(ctx context.Context, assignmentID uint) error
	Transaction(ctx context.Context, fn func(repo PendingReviewRepository) error) error
}

type pendingReviewRepository struct {
	db *gorm.DB
}

// NewPendingReviewRepository instantiates a GORM-backed repository.
func NewPendingReviewRepository(db *gorm.DB) PendingReviewRepository {
	return &pendingReviewRepository{db: db}
}

func (r *pendingReviewRepository) latestOrder(query *gorm.DB) *gorm.DB {
	return query.Order("modified_at DESC").Order("id DESC")
}

func (r *pendingReviewRepository) Latest(ctx context.Context, assignmentID, studentID uint) (models.PendingReview, error) {
	var review models.PendingReview
	query := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID)
	if err := r.latestOrder(query).First(&review).Error; err != nil {
		return models.PendingReview{}, err
	}

	return review, nil
}

func (r *pendingReviewRepository) ListForPair(ctx context.Context, assignmentID, studentID uint) ([]models.PendingReview, error) {
	var reviews []models.PendingReview
	query := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID)
	if err := r.latestOrder(query).Find(&reviews).Error; err != nil {
		return nil, err
	}

	return reviews, nil
}

func (r *pendingReviewRepository) GetByToken(ctx context.Context, token string) (models.PendingReview, error) {
	var review models.PendingReview
	if err := r.db.WithContext(ctx).Where("approval_token = ?", token).First(&review).Error; err != nil {
		return models.PendingReview{}, err
	}

	return review, nil
}

func (r *pendingReviewRepository) GetByID(ctx context.Context, id uint) (models.PendingReview, error) {
	var review models.PendingReview
	if err := r.db.WithContext(ctx).First(&review, id).Error; err != nil {
		return models.PendingReview{}, err
	}

	return review, nil
}

func (r *pendingReviewRepository) ListByIDs(ctx context.Context, ids []uint) ([]models.PendingReview, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var reviews []models.PendingReview
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&reviews).Error; err != nil {
		return nil, err
	}

	return reviews, nil
}

func (r *pendingReviewRepository) ListByStatus(ctx context.Context, assignmentID uint, status models.ReviewStatus) ([]models.PendingReview, error) {
	var reviews []models.PendingReview
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("status = ?", status).
		Order("id ASC").
		Find(&reviews).Error; err != nil {
		return nil, err
	}

	return reviews, nil
}

func (r *pendingReviewRepository) Create(ctx context.Context, review *models.PendingReview) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *pendingReviewRepository) Update(ctx context.Context, review *models.PendingReview) error {
	return r.db.WithContext(ctx).Save(review).Error
}

func (r *pendingReviewRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.PendingReview{}, id).Error
}

func (r *pendingReviewRepository) DeleteForPair(ctx context.Context, assignmentID, studentID uint, statuses ...models.ReviewStatus) error {
	query := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	return query.Delete(&models.PendingReview{}).Error
}

func (r *pendingReviewRepository) DeleteForAssignment(ctx context.Context, assignmentID uint) error {
	return r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Delete(&models.PendingReview{}).Error
}

func (r *pendingReviewRepository) Transaction(ctx context.Context, fn func(repo PendingReviewRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&pendingReviewRepository{db: tx})
	})
}
