package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	reviewDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "assignai",
		Subsystem: "ai",
		Name:      "review_duration_seconds",
		Help:      "Duration of AI review requests",
	}, []string{"model"})

	reviewFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assignai",
		Subsystem: "ai",
		Name:      "review_failures_total",
		Help:      "Number of AI review failures",
	}, []string{"model"})
)

// OpenAIConfig defines configuration options for the OpenAI reviewer.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	Logger      zerolog.Logger
}

// OpenAIReviewer implements Reviewer against the OpenAI chat completion API.
type OpenAIReviewer struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIReviewer builds a new reviewer using the provided configuration.
func NewOpenAIReviewer(cfg OpenAIConfig) (*OpenAIReviewer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}

	tracer := otel.Tracer("github.com/industria-elearning/assign-ai/pkg/ai/openai")
	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	client := openai.NewClientWithConfig(config)

	return &OpenAIReviewer{
		client: client,
		cfg:    cfg,
		tracer: tracer,
		logger: logger,
	}, nil
}

// Review sends the submission to OpenAI and decodes the structured response.
// The request fails closed on timeout; callers leave the record unchanged.
func (r *OpenAIReviewer) Review(parent context.Context, input ReviewInput) (Result, error) {
	ctx, span := r.tracer.Start(parent, "openai.review", trace.WithAttributes(
		attribute.String("model", r.cfg.Model),
		attribute.String("grading_method", input.GradingMethod),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       r.cfg.Model,
		MaxTokens:   r.cfg.MaxTokens,
		Temperature: r.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: reviewerSystemPrompt(input),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := r.client.CreateChatCompletion(ctx, request)
	duration := time.Since(start)
	reviewDuration.WithLabelValues(r.cfg.Model).Observe(duration.Seconds())
	if err != nil {
		reviewFailures.WithLabelValues(r.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, fmt.Errorf("openai review: %w", err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("no choices returned from openai")
		reviewFailures.WithLabelValues(r.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	result, err := DecodeResult(content)
	if err != nil {
		reviewFailures.WithLabelValues(r.cfg.Model).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	return result, nil
}

func reviewerSystemPrompt(input ReviewInput) string {
	builder := strings.Builder{}
	builder.WriteString("You are a teaching assistant reviewing a student assignment submission. ")
	builder.WriteString("Respond with a JSON object containing reply (free-text feedback for the student)")

	switch input.GradingMethod {
	case "rubric":
		builder.WriteString(` and rubric: an array of {"name", "levels": [{"points", "comment"}]} with exactly one selected level per criterion, using only the criterion names and level points provided.`)
	case "guide":
		builder.WriteString(` and guide: an object mapping each provided criterion name to {"grade", "reply"}, with grade within that criterion's maximum.`)
	default:
		builder.WriteString(fmt.Sprintf(" and grade: a number between 0 and %g.", input.MaxGrade))
	}

	return builder.String()
}

func buildUserPrompt(input ReviewInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Course\n")
	builder.WriteString(input.CourseName)
	builder.WriteString("\n\n## Assignment\n")
	builder.WriteString(input.AssignmentTitle)
	if input.AssignmentIntro != "" {
		builder.WriteString("\n\n## Instructions\n")
		builder.WriteString(input.AssignmentIntro)
	}

	if len(input.RubricCriteria) > 0 {
		builder.WriteString("\n\n## Rubric\n")
		for _, criterion := range input.RubricCriteria {
			builder.WriteString("- ")
			builder.WriteString(criterion.Name)
			builder.WriteString("\n")
			for _, level := range criterion.Levels {
				builder.WriteString(fmt.Sprintf("  - %g points: %s\n", level.Points, level.Definition))
			}
		}
	}

	if len(input.GuideCriteria) > 0 {
		builder.WriteString("\n\n## Marking Guide\n")
		for _, criterion := range input.GuideCriteria {
			builder.WriteString(fmt.Sprintf("- %s (max %g): %s\n", criterion.Name, criterion.MaxScore, criterion.Description))
		}
	}

	builder.WriteString(fmt.Sprintf("\n\n## Maximum Grade\n%g", input.MaxGrade))
	builder.WriteString("\n\n## Student\n")
	builder.WriteString(input.StudentName)
	builder.WriteString("\n\n## Submission\n")
	builder.WriteString(input.SubmissionText)
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}
