package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/industria-elearning/assign-ai/internal/dto"
	"github.com/industria-elearning/assign-ai/internal/service"
	"github.com/industria-elearning/assign-ai/internal/utils"
)

// ConfigHandler manages per-assignment AI configuration endpoints.
type ConfigHandler struct {
	service service.AssignmentConfigService
	logger  zerolog.Logger
}

// NewConfigHandler builds a config handler instance.
func NewConfigHandler(service service.AssignmentConfigService, logger zerolog.Logger) *ConfigHandler {
	return &ConfigHandler{
		service: service,
		logger:  logger.With().Str("component", "config_handler").Logger(),
	}
}

// Register attaches the config routes to the provided router group.
func (h *ConfigHandler) Register(router fiber.Router) {
	router.Get("/assignments/:id/config", h.get)
	router.Put("/assignments/:id/config", h.update)
}

func (h *ConfigHandler) get(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	config, err := h.service.Get(c.Context(), assignmentID)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "config retrieved", config)
}

func (h *ConfigHandler) update(c *fiber.Ctx) error {
	assignmentID, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var payload dto.AssignmentConfigRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	config, err := h.service.Update(c.Context(), assignmentID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "config updated", config)
}

func (h *ConfigHandler) handleError(c *fiber.Ctx, err error) error {
	if isValidationError(err) {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	h.logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
