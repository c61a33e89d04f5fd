package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/industria-elearning/assign-ai/internal/dto"
	"github.com/industria-elearning/assign-ai/internal/models"
	"github.com/industria-elearning/assign-ai/internal/repository"
)

// AssignmentConfigService manages per-assignment AI settings.
type AssignmentConfigService interface {
	Get(ctx context.Context, assignmentID uint) (dto.AssignmentConfigResponse, error)
	Update(ctx context.Context, assignmentID uint, payload dto.AssignmentConfigRequest) (dto.AssignmentConfigResponse, error)
}

type assignmentConfigService struct {
	repo      repository.AssignmentConfigRepository
	cache     ConfigProvider
	validator *validator.Validate
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAssignmentConfigService constructs the config service.
func NewAssignmentConfigService(repo repository.AssignmentConfigRepository, cache ConfigProvider, validate *validator.Validate, logger zerolog.Logger) AssignmentConfigService {
	return &assignmentConfigService{
		repo:      repo,
		cache:     cache,
		validator: validate,
		logger:    logger.With().Str("component", "config_service").Logger(),
		now:       time.Now,
	}
}

func (s *assignmentConfigService) Get(ctx context.Context, assignmentID uint) (dto.AssignmentConfigResponse, error) {
	config, err := s.cache.Get(ctx, assignmentID)
	if err != nil {
		return dto.AssignmentConfigResponse{}, err
	}

	return dto.NewAssignmentConfigResponse(config), nil
}

func (s *assignmentConfigService) Update(ctx context.Context, assignmentID uint, payload dto.AssignmentConfigRequest) (dto.AssignmentConfigResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentConfigResponse{}, err
	}

	config := models.AssignmentConfig{
		AssignmentID: assignmentID,
		EnableAI:     payload.EnableAI,
		Autograde:    payload.Autograde,
		UseDelay:     payload.UseDelay,
		DelayMinutes: payload.DelayMinutes,
		GraderID:     payload.GraderID,
		UpdatedAt:    s.now(),
	}

	if err := s.repo.Upsert(ctx, &config); err != nil {
		return dto.AssignmentConfigResponse{}, err
	}
	s.cache.Invalidate(ctx, assignmentID)

	return dto.NewAssignmentConfigResponse(config), nil
}
