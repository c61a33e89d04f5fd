package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/industria-elearning/assign-ai/internal/dto"
	"github.com/industria-elearning/assign-ai/internal/models"
	"github.com/industria-elearning/assign-ai/internal/repository"
	"github.com/industria-elearning/assign-ai/pkg/ai"
)

// ErrReviewNotFound indicates the token or record could not be located.
var ErrReviewNotFound = errors.New("review not found")

// ErrAssignmentNotFound indicates the assignment could not be located.
var ErrAssignmentNotFound = errors.New("assignment not found")

// ErrProcessingFailed is the generic retry-safe signal for AI provider
// failures. The review record is left unchanged.
var ErrProcessingFailed = errors.New("ai processing failed")

// ErrReviewSuperseded indicates the record vanished or was rejected while the
// AI call was in flight; the late result is discarded.
var ErrReviewSuperseded = errors.New("review superseded before response was stored")

// ErrInvalidTransition indicates a status change the lifecycle does not allow.
var ErrInvalidTransition = errors.New("status transition not allowed")

// queueSweepBatchSize bounds how many due queue items one sweep claims.
const queueSweepBatchSize = 20

// ConfigProvider serves per-assignment AI settings, normally the redis-backed
// TTL cache.
type ConfigProvider interface {
	Get(ctx context.Context, assignmentID uint) (models.AssignmentConfig, error)
	Invalidate(ctx context.Context, assignmentID uint)
}

// ReviewService owns the pending-review lifecycle per (assignment, student)
// pair: trigger handling, queue scheduling, AI dispatch and human decisions.
type ReviewService interface {
	OnSubmissionCreated(ctx context.Context, studentID, assignmentID uint, submissionStatus string) error
	OnSubmissionUpdated(ctx context.Context, studentID, assignmentID uint, submissionStatus string, draftsEnabled bool) error
	OnSubmissionWithdrawn(ctx context.Context, studentID, assignmentID uint) error
	OnModuleDeleted(ctx context.Context, assignmentID uint) error
	RequestManualReview(ctx context.Context, assignmentID, studentID, requestedBy uint) (string, error)
	RequestReviewAll(ctx context.Context, assignmentID, requestedBy uint) (int, error)
	ProcessDueQueue(ctx context.Context) (int, error)
	Approve(ctx context.Context, token string, actorID uint) (dto.ChangeStatusResponse, error)
	Reject(ctx context.Context, token string, actorID uint) (dto.ChangeStatusResponse, error)
	ApproveAllPending(ctx context.Context, assignmentID, actorID uint) (int, error)
	SyncAfterGrading(ctx context.Context, assignmentID, studentID uint, grade *float64, graderID uint) error
	GetDetails(ctx context.Context, token string) (dto.ReviewDetailsResponse, error)
	UpdateMessage(ctx context.Context, token, message string) (dto.ReviewDetailsResponse, error)
	GetProgress(ctx context.Context, ids []uint) ([]dto.ProgressItem, error)
	LatestToken(ctx context.Context, assignmentID, studentID uint) (string, error)
}

type reviewService struct {
	reviews     repository.PendingReviewRepository
	queue       repository.ReviewQueueRepository
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	students    repository.StudentRepository
	configRepo  repository.AssignmentConfigRepository
	configs     ConfigProvider
	reviewer    ai.Reviewer
	reconciler  *Reconciler
	adapter     *GradingSchemeAdapter
	enabled     bool
	logger      zerolog.Logger
	now         func() time.Time
}

// ReviewServiceDeps bundles the collaborators of the review service.
type ReviewServiceDeps struct {
	Reviews     repository.PendingReviewRepository
	Queue       repository.ReviewQueueRepository
	Assignments repository.AssignmentRepository
	Submissions repository.SubmissionRepository
	Students    repository.StudentRepository
	ConfigRepo  repository.AssignmentConfigRepository
	Configs     ConfigProvider
	Reviewer    ai.Reviewer
	Reconciler  *Reconciler
	Adapter     *GradingSchemeAdapter
	// Enabled is the site-wide switch; assignment configs narrow it further.
	Enabled bool
}

// NewReviewService constructs the pending-review state machine.
func NewReviewService(deps ReviewServiceDeps, logger zerolog.Logger) ReviewService {
	return &reviewService{
		reviews:     deps.Reviews,
		queue:       deps.Queue,
		assignments: deps.Assignments,
		submissions: deps.Submissions,
		students:    deps.Students,
		configRepo:  deps.ConfigRepo,
		configs:     deps.Configs,
		reviewer:    deps.Reviewer,
		reconciler:  deps.Reconciler,
		adapter:     deps.Adapter,
		enabled:     deps.Enabled,
		logger:      logger.With().Str("component", "review_service").Logger(),
		now:         time.Now,
	}
}

func (s *reviewService) OnSubmissionCreated(ctx context.Context, studentID, assignmentID uint, submissionStatus string) error {
	if !s.enabled || submissionStatus != models.SubmissionStatusSubmitted {
		return nil
	}

	config, err := s.configs.Get(ctx, assignmentID)
	if err != nil {
		return err
	}
	if !config.EnableAI {
		return nil
	}

	delay := time.Duration(0)
	if config.UseDelay {
		delay = config.Delay()
	}

	return s.schedule(ctx, assignmentID, studentID, delay)
}

func (s *reviewService) OnSubmissionUpdated(ctx context.Context, studentID, assignmentID uint, submissionStatus string, draftsEnabled bool) error {
	if !s.enabled {
		return nil
	}

	// With drafts disabled, only the resubmission of a final attempt counts.
	if !draftsEnabled && submissionStatus != models.SubmissionStatusSubmitted {
		return nil
	}

	config, err := s.configs.Get(ctx, assignmentID)
	if err != nil {
		return err
	}
	if !config.EnableAI {
		return nil
	}

	delay := time.Duration(0)
	if config.UseDelay {
		delay = config.Delay()
	}

	latest, err := s.reviews.Latest(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return s.schedule(ctx, assignmentID, studentID, delay)
		}
		return err
	}

	switch latest.Status {
	case models.ReviewStatusPending:
		// The stored AI opinion is stale; discard it and start over.
		if err := s.reviews.Delete(ctx, latest.ID); err != nil {
			return err
		}
		return s.schedule(ctx, assignmentID, studentID, delay)
	case models.ReviewStatusApprove:
		// Refresh the AI opinion for a new approval cycle. The applied grade
		// is never revoked automatically; the fresh record supersedes the
		// approved one only after a new human decision.
		return s.schedule(ctx, assignmentID, studentID, delay)
	default:
		// rejected respects the human decision; queued/processing/initial
		// avoid duplicate work.
		return nil
	}
}

func (s *reviewService) OnSubmissionWithdrawn(ctx context.Context, studentID, assignmentID uint) error {
	undecided := []models.ReviewStatus{
		models.ReviewStatusInitial,
		models.ReviewStatusQueued,
		models.ReviewStatusProcessing,
		models.ReviewStatusPending,
	}
	if err := s.reviews.DeleteForPair(ctx, assignmentID, studentID, undecided...); err != nil {
		return err
	}

	return s.queue.DeleteForPair(ctx, assignmentID, studentID)
}

func (s *reviewService) OnModuleDeleted(ctx context.Context, assignmentID uint) error {
	if err := s.configRepo.DeleteForAssignment(ctx, assignmentID); err != nil {
		return err
	}
	s.configs.Invalidate(ctx, assignmentID)

	if err := s.reviews.DeleteForAssignment(ctx, assignmentID); err != nil {
		return err
	}

	return s.queue.DeleteForAssignment(ctx, assignmentID)
}

// schedule refreshes the live record into queued state and enqueues the
// delayed task. Enqueue collapses duplicate triggers by deleting any stale
// unprocessed item for the pair first.
func (s *reviewService) schedule(ctx context.Context, assignmentID, studentID uint, delay time.Duration) error {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	if _, err := s.refreshRecord(ctx, assignment, studentID, models.ReviewStatusQueued, 0); err != nil {
		return err
	}

	item := models.ReviewQueueItem{
		Type:         models.QueueItemTypeSubmission,
		AssignmentID: assignmentID,
		StudentID:    studentID,
		ProcessAfter: s.now().Add(delay),
	}

	return s.queue.Enqueue(ctx, &item)
}

// refreshRecord resolves the live record and moves it to the wanted status,
// creating a fresh record when none exists or the latest one already carries
// a human decision. Update-not-insert is the default write path so concurrent
// triggers cannot fork duplicate live records.
func (s *reviewService) refreshRecord(ctx context.Context, assignment models.Assignment, studentID uint, status models.ReviewStatus, actorID uint) (models.PendingReview, error) {
	var result models.PendingReview

	err := s.reviews.Transaction(ctx, func(tx repository.PendingReviewRepository) error {
		latest, err := tx.Latest(ctx, assignment.ID, studentID)
		fresh := false
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			fresh = true
		} else if latest.Status == models.ReviewStatusApprove || latest.Status == models.ReviewStatusRejected {
			// Decided records stay as history; a new cycle supersedes them.
			fresh = true
		}

		if fresh {
			record := models.PendingReview{
				CourseID:      assignment.CourseID,
				AssignmentID:  assignment.ID,
				StudentID:     studentID,
				Title:         assignment.Title,
				Status:        models.ReviewStatusInitial,
				ApprovalToken: uuid.NewString(),
				CreatedAt:     s.now(),
				ModifiedAt:    s.now(),
				ModifiedBy:    actorID,
			}
			if status != models.ReviewStatusInitial {
				if !record.Status.CanTransition(status) {
					return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, record.Status, status)
				}
				record.Status = status
			}
			if err := tx.Create(ctx, &record); err != nil {
				return err
			}
			result = record
			return nil
		}

		switch {
		case latest.Status == status:
			// Duplicate trigger; refresh the timestamp only.
		case latest.Status == models.ReviewStatusProcessing && status == models.ReviewStatusQueued:
			// A review already in flight covers the duplicate trigger.
		default:
			if !latest.Status.CanTransition(status) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, latest.Status, status)
			}
			latest.Status = status
		}
		latest.ModifiedAt = s.now()
		latest.ModifiedBy = actorID
		if err := tx.Update(ctx, &latest); err != nil {
			return err
		}
		result = latest
		return nil
	})
	if err != nil {
		return models.PendingReview{}, err
	}

	return result, nil
}

func (s *reviewService) RequestManualReview(ctx context.Context, assignmentID, studentID, requestedBy uint) (string, error) {
	tracer := otel.Tracer("github.com/industria-elearning/assign-ai/internal/service/review")
	ctx, span := tracer.Start(ctx, "review.manual")
	span.SetAttributes(
		attribute.Int64("review.assignment_id", int64(assignmentID)),
		attribute.Int64("review.student_id", int64(studentID)),
	)
	defer span.End()

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrAssignmentNotFound
		}
		return "", err
	}

	config, err := s.configs.Get(ctx, assignmentID)
	if err != nil {
		return "", err
	}

	// Manual dispatch takes over any queued work for the pair.
	if err := s.queue.DeleteForPair(ctx, assignmentID, studentID); err != nil {
		return "", err
	}

	record, err := s.runReview(ctx, assignment, config, studentID, requestedBy)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "review_failed")
		return "", err
	}

	return record.ApprovalToken, nil
}

// runReview performs one full AI review cycle for a pair: mark the live
// record processing, call the provider, then store the response if the
// record still expects it.
func (s *reviewService) runReview(ctx context.Context, assignment models.Assignment, config models.AssignmentConfig, studentID, actorID uint) (models.PendingReview, error) {
	if s.reviewer == nil {
		return models.PendingReview{}, fmt.Errorf("%w: no reviewer configured", ErrProcessingFailed)
	}

	// Remember the pre-call status so a provider failure can restore it. A
	// decided latest record means a fresh one gets created, which starts at
	// initial.
	priorStatus := models.ReviewStatusInitial
	if latest, err := s.reviews.Latest(ctx, assignment.ID, studentID); err == nil {
		if latest.Status != models.ReviewStatusApprove && latest.Status != models.ReviewStatusRejected {
			priorStatus = latest.Status
		}
	}

	record, err := s.refreshRecord(ctx, assignment, studentID, models.ReviewStatusProcessing, actorID)
	if err != nil {
		return models.PendingReview{}, err
	}

	input, err := s.buildReviewInput(ctx, assignment, studentID)
	if err != nil {
		s.revertProcessing(ctx, record.ID, priorStatus)
		return models.PendingReview{}, err
	}

	result, err := s.reviewer.Review(ctx, input)
	if err != nil {
		s.logger.Error().Err(err).
			Uint("assignment_id", assignment.ID).
			Uint("student_id", studentID).
			Msg("ai review failed")
		s.revertProcessing(ctx, record.ID, priorStatus)
		if errors.Is(err, ai.ErrMalformedResponse) {
			return models.PendingReview{}, err
		}
		return models.PendingReview{}, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}

	// Re-check right before the final write: a record deleted or rejected
	// while the call was in flight must not be resurrected by a late result.
	current, err := s.reviews.GetByID(ctx, record.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.PendingReview{}, ErrReviewSuperseded
		}
		return models.PendingReview{}, err
	}
	if current.Status == models.ReviewStatusRejected {
		return models.PendingReview{}, ErrReviewSuperseded
	}

	if err := s.storeResult(ctx, &current, assignment, result, actorID); err != nil {
		return models.PendingReview{}, err
	}

	if config.Autograde {
		if err := s.approveRecord(ctx, &current, assignment, config.GraderID); err != nil {
			return models.PendingReview{}, err
		}
	}

	return current, nil
}

// revertProcessing restores the pre-call status after a provider failure so
// the record is observationally unchanged.
func (s *reviewService) revertProcessing(ctx context.Context, recordID uint, prior models.ReviewStatus) {
	record, err := s.reviews.GetByID(ctx, recordID)
	if err != nil {
		return
	}
	if record.Status != models.ReviewStatusProcessing {
		return
	}

	if prior == models.ReviewStatusProcessing {
		prior = models.ReviewStatusInitial
	}
	record.Status = prior
	record.ModifiedAt = s.now()
	if err := s.reviews.Update(ctx, &record); err != nil {
		s.logger.Warn().Err(err).Uint("review_id", recordID).Msg("failed to revert processing status")
	}
}

func (s *reviewService) storeResult(ctx context.Context, record *models.PendingReview, assignment models.Assignment, result ai.Result, actorID uint) error {
	message := result.Reply
	record.Message = &message
	record.Grade = result.Grade
	record.Title = assignment.Title
	record.RubricResponse = nil
	record.GuideResponse = nil

	// Only the payload kind matching the active scheme is stored; the other
	// stays empty.
	switch assignment.GradingMethod {
	case models.GradingMethodRubric:
		if result.Rubric != nil {
			payload, err := json.Marshal(result.Rubric)
			if err != nil {
				return err
			}
			record.RubricResponse = datatypes.JSON(payload)
		}
	case models.GradingMethodGuide:
		if result.Guide != nil {
			payload, err := json.Marshal(result.Guide)
			if err != nil {
				return err
			}
			record.GuideResponse = datatypes.JSON(payload)
		}
	}

	if !record.Status.CanTransition(models.ReviewStatusPending) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, record.Status, models.ReviewStatusPending)
	}
	record.Status = models.ReviewStatusPending
	record.ModifiedAt = s.now()
	record.ModifiedBy = actorID

	return s.reviews.Update(ctx, record)
}

func (s *reviewService) buildReviewInput(ctx context.Context, assignment models.Assignment, studentID uint) (ai.ReviewInput, error) {
	submission, err := s.submissions.LatestForPair(ctx, assignment.ID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ai.ReviewInput{}, fmt.Errorf("no submission for assignment %d student %d", assignment.ID, studentID)
		}
		return ai.ReviewInput{}, err
	}

	studentName := fmt.Sprintf("Student %d", studentID)
	if student, err := s.students.GetByID(ctx, studentID); err == nil {
		studentName = student.Name
	}

	input := ai.ReviewInput{
		AssignmentTitle: assignment.Title,
		AssignmentIntro: assignment.Intro,
		StudentName:     studentName,
		SubmissionText:  submission.OnlineText,
		MaxGrade:        assignment.MaxGrade,
		GradingMethod:   string(assignment.GradingMethod),
	}

	for _, criterion := range assignment.RubricCriteria {
		spec := ai.CriterionSpec{Name: criterion.Name}
		for _, level := range criterion.Levels {
			spec.Levels = append(spec.Levels, ai.LevelSpec{Points: level.Points, Definition: level.Definition})
		}
		input.RubricCriteria = append(input.RubricCriteria, spec)
	}
	for _, criterion := range assignment.GuideCriteria {
		input.GuideCriteria = append(input.GuideCriteria, ai.CriterionSpec{
			Name:        criterion.Name,
			Description: criterion.Description,
			MaxScore:    criterion.MaxScore,
		})
	}

	return input, nil
}

func (s *reviewService) RequestReviewAll(ctx context.Context, assignmentID, requestedBy uint) (int, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrAssignmentNotFound
		}
		return 0, err
	}

	submissions, err := s.submissions.ListSubmittedByAssignment(ctx, assignmentID)
	if err != nil {
		return 0, err
	}

	scheduled := 0
	for _, submission := range submissions {
		// A stale pending opinion is superseded by the re-run.
		if latest, err := s.reviews.Latest(ctx, assignmentID, submission.StudentID); err == nil && latest.Status == models.ReviewStatusPending {
			if err := s.reviews.Delete(ctx, latest.ID); err != nil {
				s.logger.Warn().Err(err).
					Uint("assignment_id", assignmentID).
					Uint("student_id", submission.StudentID).
					Msg("failed to supersede pending review in batch")
				continue
			}
		}

		if _, err := s.refreshRecord(ctx, assignment, submission.StudentID, models.ReviewStatusQueued, requestedBy); err != nil {
			s.logger.Warn().Err(err).
				Uint("assignment_id", assignmentID).
				Uint("student_id", submission.StudentID).
				Msg("failed to schedule review in batch")
			continue
		}

		item := models.ReviewQueueItem{
			Type:         models.QueueItemTypeSubmission,
			AssignmentID: assignmentID,
			StudentID:    submission.StudentID,
			ProcessAfter: s.now(),
		}
		if err := s.queue.Enqueue(ctx, &item); err != nil {
			s.logger.Warn().Err(err).
				Uint("assignment_id", assignmentID).
				Uint("student_id", submission.StudentID).
				Msg("failed to enqueue review in batch")
			continue
		}
		scheduled++
	}

	return scheduled, nil
}

func (s *reviewService) ProcessDueQueue(ctx context.Context) (int, error) {
	items, err := s.queue.ClaimDue(ctx, s.now(), queueSweepBatchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, item := range items {
		if err := s.dispatchQueued(ctx, item); err != nil {
			// Leave the item unprocessed; provider errors are retry-safe.
			s.logger.Error().Err(err).
				Uint("queue_id", item.ID).
				Uint("assignment_id", item.AssignmentID).
				Uint("student_id", item.StudentID).
				Msg("failed to process queued review")
			continue
		}

		if err := s.queue.MarkProcessed(ctx, item.ID); err != nil {
			s.logger.Warn().Err(err).Uint("queue_id", item.ID).Msg("failed to mark queue item processed")
			continue
		}
		processed++
	}

	return processed, nil
}

// dispatchQueued runs one claimed queue item. Stale items for disabled or
// vanished targets return nil so they are marked processed and retired.
func (s *reviewService) dispatchQueued(ctx context.Context, item models.ReviewQueueItem) error {
	if !s.enabled {
		return nil
	}

	config, err := s.configs.Get(ctx, item.AssignmentID)
	if err != nil {
		return err
	}
	if !config.EnableAI {
		return nil
	}

	assignment, err := s.assignments.GetByID(ctx, item.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	submission, err := s.submissions.LatestForPair(ctx, item.AssignmentID, item.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if !submission.IsSubmitted() {
		return nil
	}

	if _, err := s.runReview(ctx, assignment, config, item.StudentID, config.GraderID); err != nil {
		if errors.Is(err, ErrReviewSuperseded) {
			return nil
		}
		return err
	}

	return nil
}

func (s *reviewService) Approve(ctx context.Context, token string, actorID uint) (dto.ChangeStatusResponse, error) {
	record, err := s.reviews.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChangeStatusResponse{}, ErrReviewNotFound
		}
		return dto.ChangeStatusResponse{}, err
	}

	assignment, err := s.assignments.GetByID(ctx, record.AssignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChangeStatusResponse{}, ErrAssignmentNotFound
		}
		return dto.ChangeStatusResponse{}, err
	}

	if err := s.approveRecord(ctx, &record, assignment, actorID); err != nil {
		return dto.ChangeStatusResponse{}, err
	}

	return dto.ChangeStatusResponse{Status: "ok", NewStatus: string(record.Status)}, nil
}

// approveRecord applies the stored AI feedback through the reconciliation
// engine and advances the record to approve. Apply and store errors propagate
// to the caller; single-record approval is a human action needing feedback.
func (s *reviewService) approveRecord(ctx context.Context, record *models.PendingReview, assignment models.Assignment, graderID uint) error {
	if !record.Status.CanTransition(models.ReviewStatusApprove) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, record.Status, models.ReviewStatusApprove)
	}

	result, err := s.storedResult(*record)
	if err != nil {
		return err
	}

	if _, err := s.reconciler.Apply(ctx, assignment, record.StudentID, result, graderID); err != nil {
		return err
	}

	record.Status = models.ReviewStatusApprove
	record.ModifiedAt = s.now()
	record.ModifiedBy = graderID

	return s.reviews.Update(ctx, record)
}

// storedResult reconstructs the AI result from the persisted record.
func (s *reviewService) storedResult(record models.PendingReview) (ai.Result, error) {
	result := ai.Result{Grade: record.Grade}
	if record.Message != nil {
		result.Reply = *record.Message
	}

	if len(record.RubricResponse) > 0 {
		var payload ai.RubricPayload
		if err := json.Unmarshal(record.RubricResponse, &payload); err != nil {
			return ai.Result{}, fmt.Errorf("decode stored rubric response: %w", err)
		}
		result.Rubric = payload
	}

	if len(record.GuideResponse) > 0 {
		var payload ai.GuidePayload
		if err := json.Unmarshal(record.GuideResponse, &payload); err != nil {
			return ai.Result{}, fmt.Errorf("decode stored guide response: %w", err)
		}
		result.Guide = payload
	}

	return result, nil
}

func (s *reviewService) Reject(ctx context.Context, token string, actorID uint) (dto.ChangeStatusResponse, error) {
	record, err := s.reviews.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ChangeStatusResponse{}, ErrReviewNotFound
		}
		return dto.ChangeStatusResponse{}, err
	}

	if !record.Status.CanTransition(models.ReviewStatusRejected) {
		return dto.ChangeStatusResponse{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, record.Status, models.ReviewStatusRejected)
	}

	record.Status = models.ReviewStatusRejected
	record.ModifiedAt = s.now()
	record.ModifiedBy = actorID

	if err := s.reviews.Update(ctx, &record); err != nil {
		return dto.ChangeStatusResponse{}, err
	}

	return dto.ChangeStatusResponse{Status: "ok", NewStatus: string(record.Status)}, nil
}

func (s *reviewService) ApproveAllPending(ctx context.Context, assignmentID, actorID uint) (int, error) {
	tracer := otel.Tracer("github.com/industria-elearning/assign-ai/internal/service/review")
	ctx, span := tracer.Start(ctx, "review.approve_all")
	span.SetAttributes(attribute.Int64("review.assignment_id", int64(assignmentID)))
	defer span.End()

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrAssignmentNotFound
		}
		return 0, err
	}

	records, err := s.reviews.ListByStatus(ctx, assignmentID, models.ReviewStatusPending)
	if err != nil {
		return 0, err
	}

	approved := 0
	for i := range records {
		if err := s.approveRecord(ctx, &records[i], assignment, actorID); err != nil {
			// One student's write-back failure must not block the others.
			s.logger.Error().Err(err).
				Uint("review_id", records[i].ID).
				Uint("student_id", records[i].StudentID).
				Msg("failed to approve review in batch")
			continue
		}
		approved++
	}

	return approved, nil
}

func (s *reviewService) SyncAfterGrading(ctx context.Context, assignmentID, studentID uint, grade *float64, graderID uint) error {
	latest, err := s.reviews.Latest(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	// Direct grading edits are mirrored only onto approved AI records.
	if latest.Status != models.ReviewStatusApprove {
		return nil
	}

	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}

	gradeRecord, err := s.adapter.CurrentGradeRecord(ctx, assignmentID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	scheme := s.adapter.ActiveScheme(assignment)

	latest.RubricResponse = nil
	latest.GuideResponse = nil
	switch scheme.Method {
	case models.GradingMethodRubric:
		payload := rubricPayloadFromFills(scheme, gradeRecord.RubricFills)
		if len(payload) > 0 {
			data, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			latest.RubricResponse = datatypes.JSON(data)
		}
	case models.GradingMethodGuide:
		payload := guidePayloadFromFills(scheme, gradeRecord.GuideFills)
		if len(payload) > 0 {
			data, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			latest.GuideResponse = datatypes.JSON(data)
		}
	}

	comment := s.adapter.FeedbackComment(gradeRecord)
	latest.Message = &comment
	if grade != nil {
		latest.Grade = grade
	} else {
		latest.Grade = gradeRecord.Grade
	}
	latest.ModifiedAt = s.now()
	latest.ModifiedBy = graderID

	return s.reviews.Update(ctx, &latest)
}

func rubricPayloadFromFills(scheme Scheme, fills []models.RubricFill) ai.RubricPayload {
	type levelInfo struct {
		points float64
	}
	levels := make(map[uint]levelInfo)
	names := make(map[uint]string)
	for _, criterion := range scheme.Criteria {
		names[criterion.ID] = criterion.Name
		for _, level := range criterion.Levels {
			levels[level.ID] = levelInfo{points: level.Points}
		}
	}

	payload := ai.RubricPayload{}
	for _, criterion := range scheme.Criteria {
		for _, fill := range fills {
			if fill.CriterionID != criterion.ID {
				continue
			}
			payload = append(payload, ai.RubricItem{
				Name: names[fill.CriterionID],
				Levels: []ai.RubricItemLevel{{
					Points:  levels[fill.LevelID].points,
					Comment: fill.Remark,
				}},
			})
		}
	}

	return payload
}

func guidePayloadFromFills(scheme Scheme, fills []models.GuideFill) ai.GuidePayload {
	names := make(map[uint]string)
	for _, criterion := range scheme.Criteria {
		names[criterion.ID] = criterion.Name
	}

	payload := ai.GuidePayload{}
	for _, fill := range fills {
		name, ok := names[fill.CriterionID]
		if !ok {
			continue
		}
		payload[name] = ai.GuideItem{Grade: fill.Score, Reply: ai.ReplyText(fill.Remark)}
	}

	return payload
}

func (s *reviewService) GetDetails(ctx context.Context, token string) (dto.ReviewDetailsResponse, error) {
	record, err := s.reviews.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReviewDetailsResponse{}, ErrReviewNotFound
		}
		return dto.ReviewDetailsResponse{}, err
	}

	return dto.NewReviewDetailsResponse(record), nil
}

func (s *reviewService) UpdateMessage(ctx context.Context, token, message string) (dto.ReviewDetailsResponse, error) {
	record, err := s.reviews.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.ReviewDetailsResponse{}, ErrReviewNotFound
		}
		return dto.ReviewDetailsResponse{}, err
	}

	record.Message = &message
	record.ModifiedAt = s.now()

	if err := s.reviews.Update(ctx, &record); err != nil {
		return dto.ReviewDetailsResponse{}, err
	}

	return dto.NewReviewDetailsResponse(record), nil
}

func (s *reviewService) GetProgress(ctx context.Context, ids []uint) ([]dto.ProgressItem, error) {
	records, err := s.reviews.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]dto.ProgressItem, 0, len(records))
	for _, record := range records {
		items = append(items, dto.ProgressItem{ID: record.ID, Status: string(record.Status)})
	}

	return items, nil
}

// LatestToken resolves the authoritative token for a pair. Precedence is
// pending > approve > processing > queued > initial, then recency; the
// result is a pure function of the stored records.
func (s *reviewService) LatestToken(ctx context.Context, assignmentID, studentID uint) (string, error) {
	records, err := s.reviews.ListForPair(ctx, assignmentID, studentID)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", ErrReviewNotFound
	}

	// Records arrive most recent first, so the first occurrence of the best
	// precedence wins ties.
	best := records[0]
	for _, record := range records[1:] {
		if record.Status.Precedence() > best.Status.Precedence() {
			best = record
		}
	}

	return best.ApprovalToken, nil
}
