package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/industria-elearning/assign-ai/internal/models"
	"github.com/industria-elearning/assign-ai/internal/repository"
)

// NormalizedLevel is one selectable point level of a normalized criterion.
type NormalizedLevel struct {
	ID          uint
	Points      float64
	Description string
}

// NormalizedCriterion is the scheme-independent view of one grading criterion.
// Rubric criteria carry Levels; guide criteria carry MaxScore/Description.
type NormalizedCriterion struct {
	ID          uint
	Name        string
	Description string
	MaxScore    float64
	Levels      []NormalizedLevel
}

// Scheme is the normalized view of an assignment's active grading scheme,
// derived from the live definition and never cached.
type Scheme struct {
	Method   models.GradingMethod
	MaxGrade float64
	Criteria []NormalizedCriterion
}

// GradingSchemeAdapter bridges the host grading definitions and grade records
// to the reconciliation engine.
type GradingSchemeAdapter struct {
	grades repository.GradingRepository
	logger zerolog.Logger
}

// NewGradingSchemeAdapter constructs the adapter.
func NewGradingSchemeAdapter(grades repository.GradingRepository, logger zerolog.Logger) *GradingSchemeAdapter {
	return &GradingSchemeAdapter{
		grades: grades,
		logger: logger.With().Str("component", "grading_scheme_adapter").Logger(),
	}
}

// ActiveScheme normalizes the assignment's current grading definition.
func (a *GradingSchemeAdapter) ActiveScheme(assignment models.Assignment) Scheme {
	scheme := Scheme{Method: assignment.GradingMethod, MaxGrade: assignment.MaxGrade}

	switch assignment.GradingMethod {
	case models.GradingMethodRubric:
		for _, criterion := range assignment.RubricCriteria {
			normalized := NormalizedCriterion{ID: criterion.ID, Name: criterion.Name}
			for _, level := range criterion.Levels {
				normalized.Levels = append(normalized.Levels, NormalizedLevel{
					ID:          level.ID,
					Points:      level.Points,
					Description: level.Definition,
				})
			}
			scheme.Criteria = append(scheme.Criteria, normalized)
		}
	case models.GradingMethodGuide:
		for _, criterion := range assignment.GuideCriteria {
			scheme.Criteria = append(scheme.Criteria, NormalizedCriterion{
				ID:          criterion.ID,
				Name:        criterion.Name,
				Description: criterion.Description,
				MaxScore:    criterion.MaxScore,
			})
		}
	}

	return scheme
}

// GradeRecord loads or creates the grade record for the pair.
func (a *GradingSchemeAdapter) GradeRecord(ctx context.Context, assignmentID, studentID uint) (models.GradeRecord, error) {
	return a.grades.GetOrCreate(ctx, assignmentID, studentID)
}

// CurrentGradeRecord loads the existing grade record for the pair.
func (a *GradingSchemeAdapter) CurrentGradeRecord(ctx context.Context, assignmentID, studentID uint) (models.GradeRecord, error) {
	return a.grades.GetByPair(ctx, assignmentID, studentID)
}

// ApplyRubricFill writes the selected level and remark for one criterion.
// Equal content is left untouched so repeated applications are no-op diffs.
func (a *GradingSchemeAdapter) ApplyRubricFill(ctx context.Context, record *models.GradeRecord, criterionID, levelID uint, remark string) (bool, error) {
	for _, fill := range record.RubricFills {
		if fill.CriterionID == criterionID && fill.LevelID == levelID && fill.Remark == remark {
			return false, nil
		}
	}

	fill := models.RubricFill{
		GradeRecordID: record.ID,
		CriterionID:   criterionID,
		LevelID:       levelID,
		Remark:        remark,
	}
	if err := a.grades.UpsertRubricFill(ctx, &fill); err != nil {
		return false, err
	}

	replaceRubricFill(record, fill)
	return true, nil
}

// ApplyGuideFill writes the score and remark for one guide criterion.
func (a *GradingSchemeAdapter) ApplyGuideFill(ctx context.Context, record *models.GradeRecord, criterionID uint, score float64, remark string) (bool, error) {
	for _, fill := range record.GuideFills {
		if fill.CriterionID == criterionID && fill.Score == score && fill.Remark == remark {
			return false, nil
		}
	}

	fill := models.GuideFill{
		GradeRecordID: record.ID,
		CriterionID:   criterionID,
		Score:         score,
		Remark:        remark,
	}
	if err := a.grades.UpsertGuideFill(ctx, &fill); err != nil {
		return false, err
	}

	replaceGuideFill(record, fill)
	return true, nil
}

// WriteGrade persists the numeric grade, grader identity and the released
// workflow marker on the record.
func (a *GradingSchemeAdapter) WriteGrade(ctx context.Context, record *models.GradeRecord, grade float64, graderID uint) error {
	record.Grade = &grade
	record.GraderID = graderID
	record.WorkflowState = models.WorkflowStateReleased

	return a.grades.Update(ctx, record)
}

// FeedbackComment returns the stored free-text feedback, empty when unset.
func (a *GradingSchemeAdapter) FeedbackComment(record models.GradeRecord) string {
	return record.FeedbackComment
}

// SetFeedbackComment updates the free-text feedback when it differs from the
// current content.
func (a *GradingSchemeAdapter) SetFeedbackComment(ctx context.Context, record *models.GradeRecord, text string) (bool, error) {
	trimmed := strings.TrimSpace(text)
	if strings.TrimSpace(record.FeedbackComment) == trimmed {
		return false, nil
	}

	record.FeedbackComment = trimmed
	if err := a.grades.Update(ctx, record); err != nil {
		return false, err
	}

	return true, nil
}

func replaceRubricFill(record *models.GradeRecord, fill models.RubricFill) {
	for i, existing := range record.RubricFills {
		if existing.CriterionID == fill.CriterionID {
			record.RubricFills[i] = fill
			return
		}
	}
	record.RubricFills = append(record.RubricFills, fill)
}

func replaceGuideFill(record *models.GradeRecord, fill models.GuideFill) {
	for i, existing := range record.GuideFills {
		if existing.CriterionID == fill.CriterionID {
			record.GuideFills[i] = fill
			return
		}
	}
	record.GuideFills = append(record.GuideFills, fill)
}
