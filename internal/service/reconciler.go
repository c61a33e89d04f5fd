package service

import (
	"context"
	"html"
	"math"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/industria-elearning/assign-ai/internal/models"
	"github.com/industria-elearning/assign-ai/pkg/ai"
)

const (
	// pointsTolerance is the absolute tolerance for matching an AI-specified
	// level against a host rubric level.
	pointsTolerance = 0.0001
	// displayTolerance is the looser tolerance used when re-deriving applied
	// levels for UI consistency, where values may be rounded.
	displayTolerance = 0.1
)

// ApplyOutcome summarizes what a reconciliation pass wrote.
type ApplyOutcome struct {
	AppliedCriteria int
	GradeWritten    bool
	Grade           *float64
	UsedFallback    bool
	CommentWritten  bool
}

// GradedEvent is emitted once per successful feedback application.
type GradedEvent struct {
	AssignmentID uint     `json:"assignment_id"`
	StudentID    uint     `json:"student_id"`
	Grade        *float64 `json:"grade"`
	GraderID     uint     `json:"grader_id"`
}

// GradedPublisher delivers submission-graded notifications.
type GradedPublisher interface {
	PublishGraded(ctx context.Context, event GradedEvent) error
}

// Reconciler maps an AI response onto the host's active grading scheme.
type Reconciler struct {
	adapter   *GradingSchemeAdapter
	publisher GradedPublisher
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewReconciler constructs the feedback reconciliation engine. The publisher
// may be nil when notifications are not wired.
func NewReconciler(adapter *GradingSchemeAdapter, publisher GradedPublisher, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		adapter:   adapter,
		publisher: publisher,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "reconciler").Logger(),
	}
}

// Apply writes the AI result into the host grading record for the pair. Zero
// matched criteria fall through to the simple numeric fallback. Scale-typed
// grading (negative max grade) is not supported and the fallback becomes a
// no-op for it.
func (r *Reconciler) Apply(ctx context.Context, assignment models.Assignment, studentID uint, result ai.Result, graderID uint) (ApplyOutcome, error) {
	scheme := r.adapter.ActiveScheme(assignment)

	record, err := r.adapter.GradeRecord(ctx, assignment.ID, studentID)
	if err != nil {
		return ApplyOutcome{}, err
	}

	outcome := ApplyOutcome{}

	switch {
	case scheme.Method == models.GradingMethodRubric && result.Rubric != nil:
		applied, total, err := r.applyRubric(ctx, scheme, &record, result.Rubric)
		if err != nil {
			return outcome, err
		}
		outcome.AppliedCriteria = applied
		if applied > 0 {
			if err := r.adapter.WriteGrade(ctx, &record, total, graderID); err != nil {
				return outcome, err
			}
			outcome.GradeWritten = true
			outcome.Grade = record.Grade
		}
	case scheme.Method == models.GradingMethodGuide && result.Guide != nil:
		applied, total, err := r.applyGuide(ctx, scheme, &record, result.Guide)
		if err != nil {
			return outcome, err
		}
		outcome.AppliedCriteria = applied
		if applied > 0 {
			if err := r.adapter.WriteGrade(ctx, &record, total, graderID); err != nil {
				return outcome, err
			}
			outcome.GradeWritten = true
			outcome.Grade = record.Grade
		}
	}

	if outcome.AppliedCriteria == 0 && result.Grade != nil {
		if assignment.UsesScale() {
			r.logger.Debug().
				Uint("assignment_id", assignment.ID).
				Msg("scale grading is not supported for numeric fallback")
		} else if assignment.MaxGrade > 0 {
			grade := clamp(*result.Grade, 0, assignment.MaxGrade)
			if err := r.adapter.WriteGrade(ctx, &record, grade, graderID); err != nil {
				return outcome, err
			}
			outcome.GradeWritten = true
			outcome.Grade = record.Grade
			outcome.UsedFallback = true
		}
	}

	// The feedback comment is written independently of which grading path
	// succeeded.
	if result.Reply != "" {
		changed, err := r.adapter.SetFeedbackComment(ctx, &record, result.Reply)
		if err != nil {
			return outcome, err
		}
		outcome.CommentWritten = changed
	}

	if r.publisher != nil {
		event := GradedEvent{
			AssignmentID: assignment.ID,
			StudentID:    studentID,
			Grade:        record.Grade,
			GraderID:     graderID,
		}
		if err := r.publisher.PublishGraded(ctx, event); err != nil {
			r.logger.Warn().Err(err).
				Uint("assignment_id", assignment.ID).
				Uint("student_id", studentID).
				Msg("failed to publish graded event")
		}
	}

	return outcome, nil
}

func (r *Reconciler) applyRubric(ctx context.Context, scheme Scheme, record *models.GradeRecord, payload ai.RubricPayload) (int, float64, error) {
	applied := 0

	for _, item := range payload {
		if len(item.Levels) == 0 {
			continue
		}
		// The model emits exactly one selected level; only the first counts.
		selected := item.Levels[0]

		criterion, ok := findCriterion(scheme.Criteria, item.Name)
		if !ok {
			continue
		}

		level, ok := findLevel(criterion.Levels, selected.Points)
		if !ok {
			// Partial matches are accepted; an unmatched level skips the
			// criterion without failing the pass.
			continue
		}

		if _, err := r.adapter.ApplyRubricFill(ctx, record, criterion.ID, level.ID, selected.Comment); err != nil {
			return applied, 0, err
		}
		applied++
	}

	total := 0.0
	pointsByLevel := make(map[uint]float64)
	for _, criterion := range scheme.Criteria {
		for _, level := range criterion.Levels {
			pointsByLevel[level.ID] = level.Points
		}
	}
	for _, fill := range record.RubricFills {
		total += pointsByLevel[fill.LevelID]
	}

	return applied, total, nil
}

func (r *Reconciler) applyGuide(ctx context.Context, scheme Scheme, record *models.GradeRecord, payload ai.GuidePayload) (int, float64, error) {
	applied := 0

	for name, item := range payload {
		criterion, ok := r.findGuideCriterion(scheme.Criteria, name)
		if !ok {
			continue
		}

		if _, err := r.adapter.ApplyGuideFill(ctx, record, criterion.ID, item.Grade, string(item.Reply)); err != nil {
			return applied, 0, err
		}
		applied++
	}

	total := 0.0
	for _, fill := range record.GuideFills {
		total += fill.Score
	}

	return applied, total, nil
}

// VerifyRubric re-derives, from the applied fills, whether every AI-specified
// criterion's selected level matches the intended points within the display
// tolerance. A mismatch only suppresses the presentation layer's success
// signal; applied changes are never rolled back.
func (r *Reconciler) VerifyRubric(scheme Scheme, record models.GradeRecord, payload ai.RubricPayload) bool {
	fillByCriterion := make(map[uint]models.RubricFill, len(record.RubricFills))
	for _, fill := range record.RubricFills {
		fillByCriterion[fill.CriterionID] = fill
	}

	pointsByLevel := make(map[uint]float64)
	for _, criterion := range scheme.Criteria {
		for _, level := range criterion.Levels {
			pointsByLevel[level.ID] = level.Points
		}
	}

	for _, item := range payload {
		if len(item.Levels) == 0 {
			continue
		}

		criterion, ok := findCriterion(scheme.Criteria, item.Name)
		if !ok {
			continue
		}

		fill, ok := fillByCriterion[criterion.ID]
		if !ok {
			return false
		}

		if math.Abs(pointsByLevel[fill.LevelID]-item.Levels[0].Points) >= displayTolerance {
			return false
		}
	}

	return true
}

func findCriterion(criteria []NormalizedCriterion, name string) (NormalizedCriterion, bool) {
	wanted := normalizeName(name)
	for _, criterion := range criteria {
		if normalizeName(criterion.Name) == wanted {
			return criterion, true
		}
	}

	return NormalizedCriterion{}, false
}

func (r *Reconciler) findGuideCriterion(criteria []NormalizedCriterion, name string) (NormalizedCriterion, bool) {
	wanted := strings.ToLower(r.stripTags(name))
	for _, criterion := range criteria {
		if strings.ToLower(r.stripTags(criterion.Name)) == wanted {
			return criterion, true
		}
	}

	return NormalizedCriterion{}, false
}

func findLevel(levels []NormalizedLevel, points float64) (NormalizedLevel, bool) {
	for _, level := range levels {
		if math.Abs(level.Points-points) < pointsTolerance {
			return level, true
		}
	}

	return NormalizedLevel{}, false
}

func (r *Reconciler) stripTags(input string) string {
	return strings.TrimSpace(html.UnescapeString(r.sanitizer.Sanitize(input)))
}

// normalizeName applies Unicode decomposition, diacritic stripping, case
// folding and whitespace trimming so criterion names compare by content.
func normalizeName(input string) string {
	chain := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	normalized, _, err := transform.String(chain, input)
	if err != nil {
		normalized = input
	}

	return strings.ToLower(strings.TrimSpace(normalized))
}

func clamp(value, minimum, maximum float64) float64 {
	if value < minimum {
		return minimum
	}
	if value > maximum {
		return maximum
	}
	return value
}
