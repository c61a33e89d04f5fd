package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/industria-elearning/assign-ai/internal/cache"
	"github.com/industria-elearning/assign-ai/internal/config"
	"github.com/industria-elearning/assign-ai/internal/database"
	"github.com/industria-elearning/assign-ai/internal/handler"
	"github.com/industria-elearning/assign-ai/internal/middleware"
	"github.com/industria-elearning/assign-ai/internal/observability"
	"github.com/industria-elearning/assign-ai/internal/repository"
	"github.com/industria-elearning/assign-ai/internal/router"
	"github.com/industria-elearning/assign-ai/internal/service"
	"github.com/industria-elearning/assign-ai/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.Migrate(db); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, config cache degraded to pass-through")
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	natsConn, err := database.ConnectNATS(cfg.NATSURL)
	if err != nil {
		logger.Warn().Err(err).Msg("nats unavailable, host events and notifications disabled")
		natsConn = nil
	}
	if natsConn != nil {
		defer natsConn.Close()
	}

	reviewer, err := buildReviewer(cfg, logger)
	if err != nil {
		log.Fatalf("failed to build ai reviewer: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	reviewRepo := repository.NewPendingReviewRepository(db)
	queueRepo := repository.NewReviewQueueRepository(db)
	assignmentRepo := repository.NewAssignmentRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	gradingRepo := repository.NewGradingRepository(db)
	configRepo := repository.NewAssignmentConfigRepository(db)

	configCache := cache.NewConfigCache(configRepo, redisClient, cfg.ConfigCacheTTL, logger)
	adapter := service.NewGradingSchemeAdapter(gradingRepo, logger)
	publisher := service.NewNATSGradedPublisher(natsConn, logger)
	reconciler := service.NewReconciler(adapter, publisher, logger)

	reviewService := service.NewReviewService(service.ReviewServiceDeps{
		Reviews:     reviewRepo,
		Queue:       queueRepo,
		Assignments: assignmentRepo,
		Submissions: submissionRepo,
		Students:    studentRepo,
		ConfigRepo:  configRepo,
		Configs:     configCache,
		Reviewer:    reviewer,
		Reconciler:  reconciler,
		Adapter:     adapter,
		Enabled:     cfg.AIEnabled,
	}, logger)
	configService := service.NewAssignmentConfigService(configRepo, configCache, validate, logger)

	reviewHandler := handler.NewReviewHandler(reviewService, validate, logger)
	configHandler := handler.NewConfigHandler(configService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		ReviewHandler: reviewHandler,
		ConfigHandler: configHandler,
		JWTMiddleware: middleware.JWTProtected(cfg.JWTSecret),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	consumer := service.NewHostEventConsumer(natsConn, reviewService, logger)
	if err := consumer.Start(ctx); err != nil {
		log.Fatalf("failed to start host event consumer: %v", err)
	}

	go runQueueSweeper(ctx, reviewService, queueRepo, cfg.QueueSweepInterval, logger)

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	waitForShutdown(app)
}

func buildReviewer(cfg config.Config, logger zerolog.Logger) (ai.Reviewer, error) {
	if !cfg.AIEnabled {
		return nil, nil
	}

	switch cfg.AIProvider {
	case "openai":
		return ai.NewOpenAIReviewer(ai.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			Timeout: cfg.AIRequestTimeout,
			Logger:  logger,
		})
	case "anthropic":
		return ai.NewAnthropicReviewer(ai.AnthropicConfig{APIKey: cfg.AnthropicAPIKey})
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.AIProvider)
	}
}

// runQueueSweeper drains due queue items on a fixed interval until the
// context is cancelled.
func runQueueSweeper(ctx context.Context, reviews service.ReviewService, queue repository.ReviewQueueRepository, interval time.Duration, logger zerolog.Logger) {
	sweepLogger := logger.With().Str("component", "queue_sweeper").Logger()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processed, err := reviews.ProcessDueQueue(ctx)
			if err != nil {
				sweepLogger.Error().Err(err).Msg("queue sweep failed")
				continue
			}
			if processed > 0 {
				sweepLogger.Info().Int("processed", processed).Msg("queue sweep completed")
				observability.ReviewsProcessedTotal().WithLabelValues("completed").Add(float64(processed))
			}
			if pending, err := queue.CountUnprocessed(ctx); err == nil {
				observability.ReviewQueueUnprocessed().Set(float64(pending))
			}
		}
	}
}

func waitForShutdown(app *fiber.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
