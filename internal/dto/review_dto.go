package dto

import (
	"encoding/json"

	"github.com/industria-elearning/assign-ai/internal/models"
)

// ProcessRequest asks for AI review of one student or the whole assignment.
// StudentID is a numeric identifier or the literal "all".
type ProcessRequest struct {
	AssignmentID uint   `json:"assignment_id" validate:"required"`
	StudentID    string `json:"student_id" validate:"required"`
}

// ProcessResponse reports how the request was dispatched.
type ProcessResponse struct {
	Status         string `json:"status"`
	ProcessedCount int    `json:"processed_count"`
	Token          string `json:"token,omitempty"`
}

// ReviewDetailsResponse exposes one pending review to the UI.
type ReviewDetailsResponse struct {
	Token          string          `json:"token"`
	Message        *string         `json:"message"`
	Status         string          `json:"status"`
	StudentID      uint            `json:"student_id"`
	Grade          *float64        `json:"grade,omitempty"`
	RubricResponse json.RawMessage `json:"rubric_response,omitempty"`
	GuideResponse  json.RawMessage `json:"guide_response,omitempty"`
}

// NewReviewDetailsResponse maps a review record to its API shape.
func NewReviewDetailsResponse(review models.PendingReview) ReviewDetailsResponse {
	response := ReviewDetailsResponse{
		Token:     review.ApprovalToken,
		Message:   review.Message,
		Status:    string(review.Status),
		StudentID: review.StudentID,
		Grade:     review.Grade,
	}
	if len(review.RubricResponse) > 0 {
		response.RubricResponse = json.RawMessage(review.RubricResponse)
	}
	if len(review.GuideResponse) > 0 {
		response.GuideResponse = json.RawMessage(review.GuideResponse)
	}

	return response
}

// UpdateMessageRequest replaces the stored free-text feedback.
type UpdateMessageRequest struct {
	Message string `json:"message" validate:"required"`
}

// UpdateMessageResponse confirms the stored message.
type UpdateMessageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ChangeStatusRequest carries the human decision for a review.
type ChangeStatusRequest struct {
	Action string `json:"action" validate:"required,oneof=approve rejected"`
}

// ChangeStatusResponse reports the resulting status.
type ChangeStatusResponse struct {
	Status    string `json:"status"`
	NewStatus string `json:"new_status"`
}

// ApproveAllResponse reports the batch approval outcome.
type ApproveAllResponse struct {
	Status        string `json:"status"`
	ApprovedCount int    `json:"approved_count"`
}

// ProgressRequest asks for the statuses of a set of review records.
type ProgressRequest struct {
	IDs []uint `json:"ids" validate:"required,min=1"`
}

// ProgressItem is the status of one review record. The core never computes a
// numeric progress percentage; smoothing is a presentation concern.
type ProgressItem struct {
	ID     uint   `json:"id"`
	Status string `json:"status"`
}

// LatestTokenResponse resolves the live record's token for a pair.
type LatestTokenResponse struct {
	Token string `json:"token"`
}

// AssignmentConfigRequest updates per-assignment AI settings.
type AssignmentConfigRequest struct {
	EnableAI     bool `json:"enable_ai"`
	Autograde    bool `json:"autograde"`
	UseDelay     bool `json:"use_delay"`
	DelayMinutes int  `json:"delay_minutes" validate:"omitempty,min=1"`
	GraderID     uint `json:"grader_id"`
}

// AssignmentConfigResponse exposes per-assignment AI settings.
type AssignmentConfigResponse struct {
	AssignmentID uint `json:"assignment_id"`
	EnableAI     bool `json:"enable_ai"`
	Autograde    bool `json:"autograde"`
	UseDelay     bool `json:"use_delay"`
	DelayMinutes int  `json:"delay_minutes"`
	GraderID     uint `json:"grader_id"`
}

// NewAssignmentConfigResponse maps the config model to its API shape.
func NewAssignmentConfigResponse(config models.AssignmentConfig) AssignmentConfigResponse {
	return AssignmentConfigResponse{
		AssignmentID: config.AssignmentID,
		EnableAI:     config.EnableAI,
		Autograde:    config.Autograde,
		UseDelay:     config.UseDelay,
		DelayMinutes: config.DelayMinutes,
		GraderID:     config.GraderID,
	}
}
