package service_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/industria-elearning/assign-ai/internal/cache"
	"github.com/industria-elearning/assign-ai/internal/models"
	"github.com/industria-elearning/assign-ai/internal/repository"
	"github.com/industria-elearning/assign-ai/internal/service"
	"github.com/industria-elearning/assign-ai/pkg/ai"
)

type fakeReviewer struct {
	result ai.Result
	err    error
	calls  int
	// hook runs before the result is returned, simulating concurrent writes
	// while the AI call is in flight.
	hook func()
}

func (f *fakeReviewer) Review(_ context.Context, _ ai.ReviewInput) (ai.Result, error) {
	f.calls++
	if f.hook != nil {
		f.hook()
	}
	return f.result, f.err
}

type reviewFixture struct {
	db       *gorm.DB
	svc      service.ReviewService
	reviewer *fakeReviewer
	queue    repository.ReviewQueueRepository
	reviews  repository.PendingReviewRepository
	configs  repository.AssignmentConfigRepository
}

func setupReviewService(t *testing.T) *reviewFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
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
	))

	logger := zerolog.New(io.Discard)
	reviewer := &fakeReviewer{result: ai.Result{Reply: "Looks good."}}

	reviewRepo := repository.NewPendingReviewRepository(db)
	queueRepo := repository.NewReviewQueueRepository(db)
	configRepo := repository.NewAssignmentConfigRepository(db)
	gradingRepo := repository.NewGradingRepository(db)

	adapter := service.NewGradingSchemeAdapter(gradingRepo, logger)
	reconciler := service.NewReconciler(adapter, nil, logger)
	configCache := cache.NewConfigCache(configRepo, nil, time.Minute, logger)

	svc := service.NewReviewService(service.ReviewServiceDeps{
		Reviews:     reviewRepo,
		Queue:       queueRepo,
		Assignments: repository.NewAssignmentRepository(db),
		Submissions: repository.NewSubmissionRepository(db),
		Students:    repository.NewStudentRepository(db),
		ConfigRepo:  configRepo,
		Configs:     configCache,
		Reviewer:    reviewer,
		Reconciler:  reconciler,
		Adapter:     adapter,
		Enabled:     true,
	}, logger)

	return &reviewFixture{
		db:       db,
		svc:      svc,
		reviewer: reviewer,
		queue:    queueRepo,
		reviews:  reviewRepo,
		configs:  configRepo,
	}
}

func (f *reviewFixture) seedAssignment(t *testing.T, cfg models.AssignmentConfig) models.Assignment {
	t.Helper()

	assignment := models.Assignment{
		CourseID:      1,
		Title:         "History Essay",
		MaxGrade:      100,
		GradingMethod: models.GradingMethodSimple,
	}
	require.NoError(t, f.db.Create(&assignment).Error)

	cfg.AssignmentID = assignment.ID
	require.NoError(t, f.configs.Upsert(context.Background(), &cfg))

	return assignment
}

func (f *reviewFixture) seedSubmission(t *testing.T, assignmentID, studentID uint) {
	t.Helper()

	student := models.Student{
		ID:    studentID,
		Name:  "Jane",
		Email: fmt.Sprintf("student-%d@example.com", studentID),
	}
	f.db.FirstOrCreate(&student, models.Student{ID: studentID})

	submission := models.Submission{
		AssignmentID:  assignmentID,
		StudentID:     studentID,
		Status:        models.SubmissionStatusSubmitted,
		AttemptNumber: 1,
		OnlineText:    "The industrial revolution began...",
	}
	require.NoError(t, f.db.Create(&submission).Error)
}

func TestOnSubmissionCreatedSchedulesReview(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	ctx := context.Background()
	require.NoError(t, f.svc.OnSubmissionCreated(ctx, 42, assignment.ID, models.SubmissionStatusSubmitted))

	latest, err := f.reviews.Latest(ctx, assignment.ID, 42)
	require.NoError(t, err)
	require.Equal(t, models.ReviewStatusQueued, latest.Status)
	require.NotEmpty(t, latest.ApprovalToken)

	count, err := f.queue.CountUnprocessed(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	// A duplicate trigger collapses onto the same record and queue slot.
	require.NoError(t, f.svc.OnSubmissionCreated(ctx, 42, assignment.ID, models.SubmissionStatusSubmitted))

	count, err = f.queue.CountUnprocessed(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	var records []models.PendingReview
	require.NoError(t, f.db.Find(&records).Error)
	require.Len(t, records, 1)
}

func TestOnSubmissionCreatedCollapsesWhileProcessing(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	ctx := context.Background()
	require.NoError(t, f.svc.OnSubmissionCreated(ctx, 42, assignment.ID, models.SubmissionStatusSubmitted))

	// The pair's record is mid-review when the duplicate trigger arrives.
	latest, err := f.reviews.Latest(ctx, assignment.ID, 42)
	require.NoError(t, err)
	latest.Status = models.ReviewStatusProcessing
	require.NoError(t, f.reviews.Update(ctx, &latest))

	require.NoError(t, f.svc.OnSubmissionCreated(ctx, 42, assignment.ID, models.SubmissionStatusSubmitted))

	latest, err = f.reviews.Latest(ctx, assignment.ID, 42)
	require.NoError(t, err)
	require.Equal(t, models.ReviewStatusProcessing, latest.Status)

	var records []models.PendingReview
	require.NoError(t, f.db.Find(&records).Error)
	require.Len(t, records, 1)

	count, err := f.queue.CountUnprocessed(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func TestOnSubmissionCreatedRespectsConfig(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: false})
	f.seedSubmission(t, assignment.ID, 42)

	ctx := context.Background()
	require.NoError(t, f.svc.OnSubmissionCreated(ctx, 42, assignment.ID, models.SubmissionStatusSubmitted))

	count, err := f.queue.CountUnprocessed(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	// Draft saves never schedule either.
	require.NoError(t, f.svc.OnSubmissionCreated(ctx, 42, assignment.ID, models.SubmissionStatusDraft))
	count, err = f.queue.CountUnprocessed(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestOnSubmissionCreatedHonoursDelay(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true, UseDelay: true, DelayMinutes: 30})
	f.seedSubmission(t, assignment.ID, 42)

	ctx := context.Background()
	require.NoError(t, f.svc.OnSubmissionCreated(ctx, 42, assignment.ID, models.SubmissionStatusSubmitted))

	// Nothing is due yet, so the sweep must not touch the item.
	processed, err := f.svc.ProcessDueQueue(ctx)
	require.NoError(t, err)
	require.Zero(t, processed)
	require.Zero(t, f.reviewer.calls)

	var item models.ReviewQueueItem
	require.NoError(t, f.db.First(&item).Error)
	require.True(t, item.ProcessAfter.After(time.Now().Add(25*time.Minute)))
}

func TestProcessDueQueueStoresResponse(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	grade := 85.0
	f.reviewer.result = ai.Result{Reply: "Strong argumentation.", Grade: &grade}

	ctx := context.Background()
	require.NoError(t, f.svc.OnSubmissionCreated(ctx, 42, assignment.ID, models.SubmissionStatusSubmitted))

	processed, err := f.svc.ProcessDueQueue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, processed)
	require.Equal(t, 1, f.reviewer.calls)

	latest, err := f.reviews.Latest(ctx, assignment.ID, 42)
	require.NoError(t, err)
	require.Equal(t, models.ReviewStatusPending, latest.Status)
	require.NotNil(t, latest.Message)
	require.Equal(t, "Strong argumentation.", *latest.Message)
	require.NotNil(t, latest.Grade)
	require.Equal(t, 85.0, *latest.Grade)

	count, err := f.queue.CountUnprocessed(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestProcessDueQueueLeavesItemOnProviderError(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)
	f.reviewer.err = errors.New("upstream timeout")

	ctx := context.Background()
	require.NoError(t, f.svc.OnSubmissionCreated(ctx, 42, assignment.ID, models.SubmissionStatusSubmitted))

	processed, err := f.svc.ProcessDueQueue(ctx)
	require.NoError(t, err)
	require.Zero(t, processed)

	// The item stays claimable for a later sweep and the record reverted.
	count, err := f.queue.CountUnprocessed(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	latest, err := f.reviews.Latest(ctx, assignment.ID, 42)
	require.NoError(t, err)
	require.NotEqual(t, models.ReviewStatusProcessing, latest.Status)
}

func TestRequestManualReviewReturnsToken(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	token, err := f.svc.RequestManualReview(context.Background(), assignment.ID, 42, 7)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	details, err := f.svc.GetDetails(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, string(models.ReviewStatusPending), details.Status)
}

func TestRequestManualReviewRestoresStatusOnFailure(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)
	f.reviewer.err = errors.New("rate limited")

	_, err := f.svc.RequestManualReview(context.Background(), assignment.ID, 42, 7)
	require.ErrorIs(t, err, service.ErrProcessingFailed)

	latest, err := f.reviews.Latest(context.Background(), assignment.ID, 42)
	require.NoError(t, err)
	require.Equal(t, models.ReviewStatusInitial, latest.Status)
}

func TestRequestManualReviewDiscardsLateResult(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	// While the AI call is in flight a teacher rejects the record.
	f.reviewer.hook = func() {
		require.NoError(t, f.db.Model(&models.PendingReview{}).
			Where("assignment_id = ? AND student_id = ?", assignment.ID, 42).
			Update("status", models.ReviewStatusRejected).Error)
	}

	_, err := f.svc.RequestManualReview(context.Background(), assignment.ID, 42, 7)
	require.ErrorIs(t, err, service.ErrReviewSuperseded)

	latest, err := f.reviews.Latest(context.Background(), assignment.ID, 42)
	require.NoError(t, err)
	require.Equal(t, models.ReviewStatusRejected, latest.Status)
	require.Nil(t, latest.Message)
}

func TestAutogradeAppliesImmediately(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true, Autograde: true, GraderID: 9})
	f.seedSubmission(t, assignment.ID, 42)

	grade := 70.0
	f.reviewer.result = ai.Result{Reply: "Decent.", Grade: &grade}

	token, err := f.svc.RequestManualReview(context.Background(), assignment.ID, 42, 7)
	require.NoError(t, err)

	details, err := f.svc.GetDetails(context.Background(), token)
	require.NoError(t, err)
	require.Equal(t, string(models.ReviewStatusApprove), details.Status)

	var record models.GradeRecord
	require.NoError(t, f.db.Where("assignment_id = ? AND student_id = ?", assignment.ID, 42).First(&record).Error)
	require.NotNil(t, record.Grade)
	require.Equal(t, 70.0, *record.Grade)
	require.Equal(t, uint(9), record.GraderID)
}

func TestApproveWritesGrade(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	grade := 88.0
	f.reviewer.result = ai.Result{Reply: "Excellent.", Grade: &grade}

	token, err := f.svc.RequestManualReview(context.Background(), assignment.ID, 42, 7)
	require.NoError(t, err)

	response, err := f.svc.Approve(context.Background(), token, 7)
	require.NoError(t, err)
	require.Equal(t, string(models.ReviewStatusApprove), response.NewStatus)

	var record models.GradeRecord
	require.NoError(t, f.db.Where("assignment_id = ? AND student_id = ?", assignment.ID, 42).First(&record).Error)
	require.NotNil(t, record.Grade)
	require.Equal(t, 88.0, *record.Grade)
	require.Equal(t, "Excellent.", record.FeedbackComment)
	require.Equal(t, models.WorkflowStateReleased, record.WorkflowState)
}

func TestRejectBlocksFurtherDecisions(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	token, err := f.svc.RequestManualReview(context.Background(), assignment.ID, 42, 7)
	require.NoError(t, err)

	_, err = f.svc.Reject(context.Background(), token, 7)
	require.NoError(t, err)

	_, err = f.svc.Approve(context.Background(), token, 7)
	require.ErrorIs(t, err, service.ErrInvalidTransition)

	// No grade was ever written.
	var count int64
	require.NoError(t, f.db.Model(&models.GradeRecord{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestResubmissionSupersedesPendingReview(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	ctx := context.Background()
	token, err := f.svc.RequestManualReview(ctx, assignment.ID, 42, 7)
	require.NoError(t, err)

	require.NoError(t, f.svc.OnSubmissionUpdated(ctx, 42, assignment.ID, models.SubmissionStatusSubmitted, false))

	// The stale pending record is gone; a fresh queued one replaces it.
	_, err = f.svc.GetDetails(ctx, token)
	require.ErrorIs(t, err, service.ErrReviewNotFound)

	latest, err := f.reviews.Latest(ctx, assignment.ID, 42)
	require.NoError(t, err)
	require.Equal(t, models.ReviewStatusQueued, latest.Status)
	require.NotEqual(t, token, latest.ApprovalToken)
}

func TestResubmissionAfterRejectionIsIgnored(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	ctx := context.Background()
	token, err := f.svc.RequestManualReview(ctx, assignment.ID, 42, 7)
	require.NoError(t, err)
	_, err = f.svc.Reject(ctx, token, 7)
	require.NoError(t, err)

	require.NoError(t, f.svc.OnSubmissionUpdated(ctx, 42, assignment.ID, models.SubmissionStatusSubmitted, false))

	latest, err := f.reviews.Latest(ctx, assignment.ID, 42)
	require.NoError(t, err)
	require.Equal(t, models.ReviewStatusRejected, latest.Status)

	count, err := f.queue.CountUnprocessed(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestResubmissionAfterApprovalStartsNewCycle(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	ctx := context.Background()
	token, err := f.svc.RequestManualReview(ctx, assignment.ID, 42, 7)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, token, 7)
	require.NoError(t, err)

	require.NoError(t, f.svc.OnSubmissionUpdated(ctx, 42, assignment.ID, models.SubmissionStatusSubmitted, false))

	// The approved record survives as history next to the new cycle.
	var records []models.PendingReview
	require.NoError(t, f.db.Order("id asc").Find(&records).Error)
	require.Len(t, records, 2)
	require.Equal(t, models.ReviewStatusApprove, records[0].Status)
	require.Equal(t, models.ReviewStatusQueued, records[1].Status)
}

func TestApproveAllPendingContinuesPastFailures(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})

	now := time.Now()
	good := func(studentID uint, token string) models.PendingReview {
		message := "ok"
		return models.PendingReview{
			CourseID:      assignment.CourseID,
			AssignmentID:  assignment.ID,
			StudentID:     studentID,
			Message:       &message,
			Status:        models.ReviewStatusPending,
			ApprovalToken: token,
			CreatedAt:     now,
			ModifiedAt:    now,
		}
	}

	first := good(1, "token-1")
	require.NoError(t, f.db.Create(&first).Error)

	// Corrupt stored payload makes this record fail to apply.
	broken := good(2, "token-2")
	broken.RubricResponse = datatypes.JSON([]byte(`{"not": "an array"`))
	require.NoError(t, f.db.Create(&broken).Error)

	third := good(3, "token-3")
	require.NoError(t, f.db.Create(&third).Error)

	approved, err := f.svc.ApproveAllPending(context.Background(), assignment.ID, 7)
	require.NoError(t, err)
	require.Equal(t, 2, approved)

	var stillPending int64
	require.NoError(t, f.db.Model(&models.PendingReview{}).
		Where("status = ?", models.ReviewStatusPending).
		Count(&stillPending).Error)
	require.Equal(t, int64(1), stillPending)
}

func TestLatestTokenPrefersPending(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	ctx := context.Background()
	approvedToken, err := f.svc.RequestManualReview(ctx, assignment.ID, 42, 7)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, approvedToken, 7)
	require.NoError(t, err)

	pendingToken, err := f.svc.RequestManualReview(ctx, assignment.ID, 42, 7)
	require.NoError(t, err)
	require.NotEqual(t, approvedToken, pendingToken)

	// Pending outranks approve regardless of timestamps, and the answer is
	// stable across calls.
	for i := 0; i < 3; i++ {
		token, err := f.svc.LatestToken(ctx, assignment.ID, 42)
		require.NoError(t, err)
		require.Equal(t, pendingToken, token)
	}
}

func TestLatestTokenWithoutRecords(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})

	_, err := f.svc.LatestToken(context.Background(), assignment.ID, 42)
	require.ErrorIs(t, err, service.ErrReviewNotFound)
}

func TestOnSubmissionWithdrawnDropsUndecidedWork(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	ctx := context.Background()
	require.NoError(t, f.svc.OnSubmissionCreated(ctx, 42, assignment.ID, models.SubmissionStatusSubmitted))

	require.NoError(t, f.svc.OnSubmissionWithdrawn(ctx, 42, assignment.ID))

	_, err := f.reviews.Latest(ctx, assignment.ID, 42)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	count, err := f.queue.CountUnprocessed(ctx)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestOnModuleDeletedPurgesEverything(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	ctx := context.Background()
	require.NoError(t, f.svc.OnSubmissionCreated(ctx, 42, assignment.ID, models.SubmissionStatusSubmitted))

	require.NoError(t, f.svc.OnModuleDeleted(ctx, assignment.ID))

	var reviews, items, configs int64
	require.NoError(t, f.db.Model(&models.PendingReview{}).Count(&reviews).Error)
	require.NoError(t, f.db.Model(&models.ReviewQueueItem{}).Count(&items).Error)
	require.NoError(t, f.db.Model(&models.AssignmentConfig{}).Count(&configs).Error)
	require.Zero(t, reviews)
	require.Zero(t, items)
	require.Zero(t, configs)
}

func TestSyncAfterGradingMirrorsApprovedRecord(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	grade := 60.0
	f.reviewer.result = ai.Result{Reply: "Fine.", Grade: &grade}

	ctx := context.Background()
	token, err := f.svc.RequestManualReview(ctx, assignment.ID, 42, 7)
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, token, 7)
	require.NoError(t, err)

	// A teacher edits the grade directly in the host afterwards.
	edited := 75.0
	require.NoError(t, f.svc.SyncAfterGrading(ctx, assignment.ID, 42, &edited, 9))

	latest, err := f.reviews.Latest(ctx, assignment.ID, 42)
	require.NoError(t, err)
	require.Equal(t, models.ReviewStatusApprove, latest.Status)
	require.NotNil(t, latest.Grade)
	require.Equal(t, 75.0, *latest.Grade)
	require.Equal(t, uint(9), latest.ModifiedBy)
}

func TestSyncAfterGradingIgnoresUndecidedRecords(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	ctx := context.Background()
	token, err := f.svc.RequestManualReview(ctx, assignment.ID, 42, 7)
	require.NoError(t, err)

	edited := 50.0
	require.NoError(t, f.svc.SyncAfterGrading(ctx, assignment.ID, 42, &edited, 9))

	details, err := f.svc.GetDetails(ctx, token)
	require.NoError(t, err)
	require.Equal(t, string(models.ReviewStatusPending), details.Status)
	require.Nil(t, details.Grade)
}

func TestRequestReviewAllSchedulesEverySubmittedStudent(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 1)
	f.seedSubmission(t, assignment.ID, 2)

	// Drafts do not count as reviewable work.
	draft := models.Submission{
		AssignmentID:  assignment.ID,
		StudentID:     3,
		Status:        models.SubmissionStatusDraft,
		AttemptNumber: 1,
	}
	require.NoError(t, f.db.Create(&draft).Error)

	scheduled, err := f.svc.RequestReviewAll(context.Background(), assignment.ID, 7)
	require.NoError(t, err)
	require.Equal(t, 2, scheduled)

	count, err := f.queue.CountUnprocessed(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestGetProgressReportsStatuses(t *testing.T) {
	f := setupReviewService(t)
	assignment := f.seedAssignment(t, models.AssignmentConfig{EnableAI: true})
	f.seedSubmission(t, assignment.ID, 42)

	ctx := context.Background()
	token, err := f.svc.RequestManualReview(ctx, assignment.ID, 42, 7)
	require.NoError(t, err)

	record, err := f.reviews.GetByToken(ctx, token)
	require.NoError(t, err)

	items, err := f.svc.GetProgress(ctx, []uint{record.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, record.ID, items[0].ID)
	require.Equal(t, string(models.ReviewStatusPending), items[0].Status)
}
