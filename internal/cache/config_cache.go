package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/industria-elearning/assign-ai/internal/models"
	"github.com/industria-elearning/assign-ai/internal/repository"
)

// ConfigCache serves per-assignment AI settings through a bounded-TTL redis
// cache with explicit invalidation. Config rows change only via admin action,
// so staleness within one TTL window is tolerable.
type ConfigCache struct {
	repo   repository.AssignmentConfigRepository
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewConfigCache builds the cache. A nil redis client degrades to pass-through
// repository reads.
func NewConfigCache(repo repository.AssignmentConfigRepository, redisClient *redis.Client, ttl time.Duration, logger zerolog.Logger) *ConfigCache {
	return &ConfigCache{
		repo:   repo,
		redis:  redisClient,
		ttl:    ttl,
		logger: logger.With().Str("component", "config_cache").Logger(),
	}
}

func (c *ConfigCache) key(assignmentID uint) string {
	return fmt.Sprintf("assignai:config:%d", assignmentID)
}

// Get returns the assignment's AI settings. A missing row yields the disabled
// defaults rather than an error.
func (c *ConfigCache) Get(ctx context.Context, assignmentID uint) (models.AssignmentConfig, error) {
	cacheKey := c.key(assignmentID)

	if c.redis != nil {
		if cached, err := c.redis.Get(ctx, cacheKey).Result(); err == nil {
			var config models.AssignmentConfig
			if unmarshalErr := json.Unmarshal([]byte(cached), &config); unmarshalErr == nil {
				return config, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read config cache")
		}
	}

	config, err := c.repo.Get(ctx, assignmentID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return models.AssignmentConfig{}, err
		}
		config = models.AssignmentConfig{AssignmentID: assignmentID}
	}

	if c.redis != nil {
		if payload, err := json.Marshal(config); err == nil {
			if err := c.redis.Set(ctx, cacheKey, payload, c.ttl).Err(); err != nil {
				c.logger.Warn().Err(err).Msg("failed to store config cache")
			}
		}
	}

	return config, nil
}

// Invalidate drops the cached entry for the assignment.
func (c *ConfigCache) Invalidate(ctx context.Context, assignmentID uint) {
	if c.redis == nil {
		return
	}

	if err := c.redis.Del(ctx, c.key(assignmentID)).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("assignment_id", assignmentID).Msg("failed to invalidate config cache")
	}
}
