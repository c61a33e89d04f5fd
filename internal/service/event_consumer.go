package service

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/industria-elearning/assign-ai/internal/observability"
)

// Inbound host-event subjects. The LMS emits one message per lifecycle event.
const (
	SubjectSubmissionCreated   = "assignai.submission.created"
	SubjectSubmissionUpdated   = "assignai.submission.updated"
	SubjectSubmissionWithdrawn = "assignai.submission.withdrawn"
	SubjectSubmissionGraded    = "assignai.submission.graded"
	SubjectModuleDeleted       = "assignai.module.deleted"
)

const consumerQueueGroup = "assignai-reviews"

type submissionEvent struct {
	AssignmentID  uint     `json:"assignment_id"`
	StudentID     uint     `json:"student_id"`
	Status        string   `json:"status"`
	DraftsEnabled bool     `json:"drafts_enabled"`
	Grade         *float64 `json:"grade,omitempty"`
	GraderID      uint     `json:"grader_id,omitempty"`
}

type moduleEvent struct {
	AssignmentID uint `json:"assignment_id"`
}

// HostEventConsumer subscribes to the LMS lifecycle subjects and dispatches
// them into the review service. Handler errors are logged and swallowed; a
// poisoned message must not wedge the subscription.
type HostEventConsumer struct {
	conn    *nats.Conn
	reviews ReviewService
	logger  zerolog.Logger
	subs    []*nats.Subscription
}

// NewHostEventConsumer wires the consumer. A nil connection yields an inert
// consumer so HTTP-only deployments keep working.
func NewHostEventConsumer(conn *nats.Conn, reviews ReviewService, logger zerolog.Logger) *HostEventConsumer {
	return &HostEventConsumer{
		conn:    conn,
		reviews: reviews,
		logger:  logger.With().Str("component", "host_event_consumer").Logger(),
	}
}

// Start subscribes to every host subject on a shared queue group so only one
// instance handles each event. It returns after subscribing; message handling
// runs on the NATS callback goroutines until the context is cancelled.
func (c *HostEventConsumer) Start(ctx context.Context) error {
	if c.conn == nil {
		return nil
	}

	handlers := map[string]func(context.Context, []byte) error{
		SubjectSubmissionCreated:   c.onSubmissionCreated,
		SubjectSubmissionUpdated:   c.onSubmissionUpdated,
		SubjectSubmissionWithdrawn: c.onSubmissionWithdrawn,
		SubjectSubmissionGraded:    c.onSubmissionGraded,
		SubjectModuleDeleted:       c.onModuleDeleted,
	}

	for subject, handler := range handlers {
		subject, handler := subject, handler
		sub, err := c.conn.QueueSubscribe(subject, consumerQueueGroup, func(msg *nats.Msg) {
			observability.HostEventsReceivedTotal().WithLabelValues(subject).Inc()
			if err := handler(ctx, msg.Data); err != nil {
				observability.HostEventFailuresTotal().WithLabelValues(subject).Inc()
				c.logger.Error().Err(err).Str("subject", subject).Msg("failed to handle host event")
			}
		})
		if err != nil {
			return err
		}
		c.subs = append(c.subs, sub)
	}

	go func() {
		<-ctx.Done()
		for _, sub := range c.subs {
			if err := sub.Drain(); err != nil {
				c.logger.Warn().Err(err).Msg("failed to drain host event subscription")
			}
		}
	}()

	return nil
}

func (c *HostEventConsumer) onSubmissionCreated(ctx context.Context, data []byte) error {
	var event submissionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logger.Warn().Err(err).Msg("invalid submission created payload")
		return nil
	}

	return c.reviews.OnSubmissionCreated(ctx, event.StudentID, event.AssignmentID, event.Status)
}

func (c *HostEventConsumer) onSubmissionUpdated(ctx context.Context, data []byte) error {
	var event submissionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logger.Warn().Err(err).Msg("invalid submission updated payload")
		return nil
	}

	return c.reviews.OnSubmissionUpdated(ctx, event.StudentID, event.AssignmentID, event.Status, event.DraftsEnabled)
}

func (c *HostEventConsumer) onSubmissionWithdrawn(ctx context.Context, data []byte) error {
	var event submissionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logger.Warn().Err(err).Msg("invalid submission withdrawn payload")
		return nil
	}

	return c.reviews.OnSubmissionWithdrawn(ctx, event.StudentID, event.AssignmentID)
}

func (c *HostEventConsumer) onSubmissionGraded(ctx context.Context, data []byte) error {
	var event submissionEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logger.Warn().Err(err).Msg("invalid submission graded payload")
		return nil
	}

	return c.reviews.SyncAfterGrading(ctx, event.AssignmentID, event.StudentID, event.Grade, event.GraderID)
}

func (c *HostEventConsumer) onModuleDeleted(ctx context.Context, data []byte) error {
	var event moduleEvent
	if err := json.Unmarshal(data, &event); err != nil {
		c.logger.Warn().Err(err).Msg("invalid module deleted payload")
		return nil
	}

	return c.reviews.OnModuleDeleted(ctx, event.AssignmentID)
}
