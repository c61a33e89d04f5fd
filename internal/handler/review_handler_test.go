package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/industria-elearning/assign-ai/internal/cache"
	"github.com/industria-elearning/assign-ai/internal/config"
	"github.com/industria-elearning/assign-ai/internal/dto"
	"github.com/industria-elearning/assign-ai/internal/handler"
	"github.com/industria-elearning/assign-ai/internal/models"
	"github.com/industria-elearning/assign-ai/internal/repository"
	"github.com/industria-elearning/assign-ai/internal/router"
	"github.com/industria-elearning/assign-ai/internal/service"
	"github.com/industria-elearning/assign-ai/pkg/ai"
)

type stubReviewer struct {
	result ai.Result
}

func (s *stubReviewer) Review(_ context.Context, _ ai.ReviewInput) (ai.Result, error) {
	return s.result, nil
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}

func setupReviewApp(t *testing.T, role string) (*fiber.App, *gorm.DB) {
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

	validate := validator.New(validator.WithRequiredStructEnabled())
	logger := zerolog.New(io.Discard)

	grade := 90.0
	reviewer := &stubReviewer{result: ai.Result{Reply: "Well reasoned essay.", Grade: &grade}}

	configRepo := repository.NewAssignmentConfigRepository(db)
	configCache := cache.NewConfigCache(configRepo, nil, time.Minute, logger)
	adapter := service.NewGradingSchemeAdapter(repository.NewGradingRepository(db), logger)
	reconciler := service.NewReconciler(adapter, nil, logger)

	reviewService := service.NewReviewService(service.ReviewServiceDeps{
		Reviews:     repository.NewPendingReviewRepository(db),
		Queue:       repository.NewReviewQueueRepository(db),
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
	configService := service.NewAssignmentConfigService(configRepo, configCache, validate, logger)

	app := fiber.New()
	router.Register(app, config.Config{AppName: "Test"}, router.Dependencies{
		ReviewHandler: handler.NewReviewHandler(reviewService, validate, logger),
		ConfigHandler: handler.NewConfigHandler(configService, logger),
		JWTMiddleware: func(c *fiber.Ctx) error {
			c.Locals("user_id", uint(7))
			c.Locals("user_role", role)
			return c.Next()
		},
	})

	return app, db
}

func seedReviewableAssignment(t *testing.T, db *gorm.DB) models.Assignment {
	t.Helper()

	assignment := models.Assignment{
		CourseID:      1,
		Title:         "Climate Essay",
		MaxGrade:      100,
		GradingMethod: models.GradingMethodSimple,
	}
	require.NoError(t, db.Create(&assignment).Error)
	require.NoError(t, db.Create(&models.AssignmentConfig{AssignmentID: assignment.ID, EnableAI: true}).Error)

	student := models.Student{Name: "Jane", Email: "jane@example.com"}
	require.NoError(t, db.Create(&student).Error)

	submission := models.Submission{
		AssignmentID:  assignment.ID,
		StudentID:     student.ID,
		Status:        models.SubmissionStatusSubmitted,
		AttemptNumber: 1,
		OnlineText:    "Rising temperatures...",
	}
	require.NoError(t, db.Create(&submission).Error)

	return assignment
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	return resp
}

func TestReviewLifecycleOverHTTP(t *testing.T) {
	app, db := setupReviewApp(t, "teacher")
	assignment := seedReviewableAssignment(t, db)

	var student models.Student
	require.NoError(t, db.First(&student).Error)

	// Trigger the AI review for one student.
	resp := postJSON(t, app, "/api/v1/reviews/process", dto.ProcessRequest{
		AssignmentID: assignment.ID,
		StudentID:    strconv.FormatUint(uint64(student.ID), 10),
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var processBody struct {
		Success bool                `json:"success"`
		Data    dto.ProcessResponse `json:"data"`
	}
	decodeResponse(t, resp, &processBody)
	require.True(t, processBody.Success)
	require.Equal(t, "processed", processBody.Data.Status)
	require.NotEmpty(t, processBody.Data.Token)
	token := processBody.Data.Token

	// Read the pending review back.
	req := httptest.NewRequest("GET", "/api/v1/reviews/"+token, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var detailsBody struct {
		Success bool                      `json:"success"`
		Data    dto.ReviewDetailsResponse `json:"data"`
	}
	decodeResponse(t, resp, &detailsBody)
	require.Equal(t, string(models.ReviewStatusPending), detailsBody.Data.Status)
	require.NotNil(t, detailsBody.Data.Message)
	require.Equal(t, "Well reasoned essay.", *detailsBody.Data.Message)

	// Edit the feedback before approving.
	editBody, err := json.Marshal(dto.UpdateMessageRequest{Message: "Revised feedback."})
	require.NoError(t, err)
	req = httptest.NewRequest("PATCH", "/api/v1/reviews/"+token+"/message", bytes.NewReader(editBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// Approve, which writes the grade into the host record.
	statusBody, err := json.Marshal(dto.ChangeStatusRequest{Action: "approve"})
	require.NoError(t, err)
	req = httptest.NewRequest("PATCH", "/api/v1/reviews/"+token+"/status", bytes.NewReader(statusBody))
	req.Header.Set("Content-Type", "application/json")
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var changeBody struct {
		Success bool                     `json:"success"`
		Data    dto.ChangeStatusResponse `json:"data"`
	}
	decodeResponse(t, resp, &changeBody)
	require.Equal(t, string(models.ReviewStatusApprove), changeBody.Data.NewStatus)

	var record models.GradeRecord
	require.NoError(t, db.Where("assignment_id = ? AND student_id = ?", assignment.ID, student.ID).First(&record).Error)
	require.NotNil(t, record.Grade)
	require.Equal(t, 90.0, *record.Grade)
	require.Equal(t, "Revised feedback.", record.FeedbackComment)

	// The latest token endpoint resolves the approved record.
	req = httptest.NewRequest("GET", "/api/v1/assignments/"+strconv.FormatUint(uint64(assignment.ID), 10)+
		"/students/"+strconv.FormatUint(uint64(student.ID), 10)+"/latest-token", nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var tokenBody struct {
		Data dto.LatestTokenResponse `json:"data"`
	}
	decodeResponse(t, resp, &tokenBody)
	require.Equal(t, token, tokenBody.Data.Token)
}

func TestReviewProcessValidation(t *testing.T) {
	app, _ := setupReviewApp(t, "teacher")

	resp := postJSON(t, app, "/api/v1/reviews/process", map[string]interface{}{"assignment_id": 1})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp = postJSON(t, app, "/api/v1/reviews/process", dto.ProcessRequest{AssignmentID: 1, StudentID: "not-a-number"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestReviewUnknownTokenReturnsNotFound(t *testing.T) {
	app, _ := setupReviewApp(t, "teacher")

	req := httptest.NewRequest("GET", "/api/v1/reviews/definitely-missing", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestReviewEndpointsRequireTeacherRole(t *testing.T) {
	app, _ := setupReviewApp(t, "student")

	resp := postJSON(t, app, "/api/v1/reviews/process", dto.ProcessRequest{AssignmentID: 1, StudentID: "1"})
	require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestAssignmentConfigRoundTrip(t *testing.T) {
	app, db := setupReviewApp(t, "teacher")
	assignment := seedReviewableAssignment(t, db)
	path := "/api/v1/assignments/" + strconv.FormatUint(uint64(assignment.ID), 10) + "/config"

	payload, err := json.Marshal(dto.AssignmentConfigRequest{
		EnableAI:     true,
		Autograde:    true,
		UseDelay:     true,
		DelayMinutes: 20,
		GraderID:     7,
	})
	require.NoError(t, err)

	req := httptest.NewRequest("PUT", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", path, nil)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var getBody struct {
		Data dto.AssignmentConfigResponse `json:"data"`
	}
	decodeResponse(t, resp, &getBody)
	require.True(t, getBody.Data.EnableAI)
	require.True(t, getBody.Data.Autograde)
	require.Equal(t, 20, getBody.Data.DelayMinutes)
	require.Equal(t, uint(7), getBody.Data.GraderID)
}

func TestHealthEndpointIsPublic(t *testing.T) {
	app, _ := setupReviewApp(t, "")

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
