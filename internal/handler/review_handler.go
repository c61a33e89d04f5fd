package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/industria-elearning/assign-ai/internal/dto"
	"github.com/industria-elearning/assign-ai/internal/observability"
	"github.com/industria-elearning/assign-ai/internal/service"
	"github.com/industria-elearning/assign-ai/internal/utils"
)

// studentAll requests a review for every student with a submission.
const studentAll = "all"

// ReviewHandler manages pending review endpoints.
type ReviewHandler struct {
	service   service.ReviewService
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewReviewHandler builds a review handler instance.
func NewReviewHandler(service service.ReviewService, validator *validator.Validate, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{
		service:   service,
		validator: validator,
		logger:    logger.With().Str("component", "review_handler").Logger(),
	}
}

// Register attaches the review routes to the provided router group.
func (h *ReviewHandler) Register(router fiber.Router) {
	router.Post("/reviews/process", h.process)
	router.Post("/reviews/progress", h.progress)
	router.Get("/reviews/:token", h.details)
	router.Patch("/reviews/:token/message", h.updateMessage)
	router.Patch("/reviews/:token/status", h.changeStatus)
	router.Post("/assignments/:id/reviews/approve-all", h.approveAll)
	router.Get("/assignments/:id/students/:sid/latest-token", h.latestToken)
}

func (h *ReviewHandler) process(c *fiber.Ctx) error {
	var payload dto.ProcessRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	actorID := userIDFromContext(c)

	if strings.EqualFold(strings.TrimSpace(payload.StudentID), studentAll) {
		count, err := h.service.RequestReviewAll(c.Context(), payload.AssignmentID, actorID)
		if err != nil {
			return h.handleError(c, err)
		}

		return utils.SendSuccess(c, "reviews scheduled", dto.ProcessResponse{
			Status:         "queued",
			ProcessedCount: count,
		})
	}

	studentID, err := strconv.ParseUint(strings.TrimSpace(payload.StudentID), 10, 64)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid student_id")
	}

	token, err := h.service.RequestManualReview(c.Context(), payload.AssignmentID, uint(studentID), actorID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "review processed", dto.ProcessResponse{
		Status:         "processed",
		ProcessedCount: 1,
		Token:          token,
	})
}

func (h *ReviewHandler) details(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Params("token"))
	if token == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "missing token")
	}

	details, err := h.service.GetDetails(c.Context(), token)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "review retrieved", details)
}

func (h *ReviewHandler) updateMessage(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Params("token"))
	if token == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "missing token")
	}

	var payload dto.UpdateMessageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	details, err := h.service.UpdateMessage(c.Context(), token, payload.Message)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "message updated", details)
}

func (h *ReviewHandler) changeStatus(c *fiber.Ctx) error {
	token := strings.TrimSpace(c.Params("token"))
	if token == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "missing token")
	}

	var payload dto.ChangeStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	actorID := userIDFromContext(c)

	var response dto.ChangeStatusResponse
	var err error
	switch payload.Action {
	case "approve":
		response, err = h.service.Approve(c.Context(), token, actorID)
	case "rejected":
		response, err = h.service.Reject(c.Context(), token, actorID)
	}
	if err != nil {
		return h.handleError(c, err)
	}

	observability.ReviewDecisionsTotal().WithLabelValues(payload.Action).Inc()

	return utils.SendSuccess(c, "status updated", response)
}

func (h *ReviewHandler) approveAll(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	count, err := h.service.ApproveAllPending(c.Context(), assignmentID, userIDFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	observability.ReviewDecisionsTotal().WithLabelValues("approve_all").Inc()

	return utils.SendSuccess(c, "reviews approved", dto.ApproveAllResponse{
		Status:        "ok",
		ApprovedCount: count,
	})
}

func (h *ReviewHandler) progress(c *fiber.Ctx) error {
	var payload dto.ProgressRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	items, err := h.service.GetProgress(c.Context(), payload.IDs)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "progress retrieved", items)
}

func (h *ReviewHandler) latestToken(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseUintParam(c, "sid")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	token, err := h.service.LatestToken(c.Context(), assignmentID, studentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "token resolved", dto.LatestTokenResponse{Token: token})
}

func (h *ReviewHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrReviewNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "review not found")
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrInvalidTransition):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrReviewSuperseded):
		return utils.SendError(c, fiber.StatusConflict, "review superseded")
	case errors.Is(err, service.ErrProcessingFailed):
		return utils.SendError(c, fiber.StatusBadGateway, "ai processing failed")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
