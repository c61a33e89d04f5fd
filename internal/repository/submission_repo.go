package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/industria-elearning/assign-ai/internal/models"
)

// SubmissionRepository reads the host's submission records.
type SubmissionRepository interface {
	LatestForPair(ctx context.Context, assignmentID, studentID uint) (models.Submission, error)
	// ListSubmittedByAssignment returns the latest submitted attempt per
	// student for the assignment, ascending by student id.
	ListSubmittedByAssignment(ctx context.Context, assignmentID uint) ([]models.Submission, error)
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates a GORM-backed repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) LatestForPair(ctx context.Context, assignmentID, studentID uint) (models.Submission, error) {
	var submission models.Submission
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("student_id = ?", studentID).
		Order("attempt_number DESC").
		Order("id DESC").
		First(&submission).Error; err != nil {
		return models.Submission{}, err
	}

	return submission, nil
}

func (r *submissionRepository) ListSubmittedByAssignment(ctx context.Context, assignmentID uint) ([]models.Submission, error) {
	var submissions []models.Submission
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Where("status = ?", models.SubmissionStatusSubmitted).
		Order("student_id ASC").
		Order("attempt_number DESC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}

	latest := make([]models.Submission, 0, len(submissions))
	seen := make(map[uint]struct{}, len(submissions))
	for _, submission := range submissions {
		if _, ok := seen[submission.StudentID]; ok {
			continue
		}
		seen[submission.StudentID] = struct{}{}
		latest = append(latest, submission)
	}

	return latest, nil
}
