package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// SubjectGraded carries outbound notifications once AI feedback lands in the
// host gradebook.
const SubjectGraded = "assignai.notifications.graded"

type gradedEnvelope struct {
	Event  GradedEvent `json:"event"`
	SentAt time.Time   `json:"sent_at"`
}

// NATSGradedPublisher emits graded events on the shared NATS bus.
type NATSGradedPublisher struct {
	conn   *nats.Conn
	logger zerolog.Logger
}

// NewNATSGradedPublisher wires the publisher. A nil connection yields a
// publisher that silently drops events, for deployments without a broker.
func NewNATSGradedPublisher(conn *nats.Conn, logger zerolog.Logger) *NATSGradedPublisher {
	return &NATSGradedPublisher{
		conn:   conn,
		logger: logger.With().Str("component", "graded_publisher").Logger(),
	}
}

// PublishGraded sends one graded notification. Delivery is fire-and-forget;
// the grade write has already happened and is never rolled back.
func (p *NATSGradedPublisher) PublishGraded(_ context.Context, event GradedEvent) error {
	if p.conn == nil {
		return nil
	}

	payload, err := json.Marshal(gradedEnvelope{Event: event, SentAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	if err := p.conn.Publish(SubjectGraded, payload); err != nil {
		return err
	}

	p.logger.Debug().
		Uint("assignment_id", event.AssignmentID).
		Uint("student_id", event.StudentID).
		Msg("graded event published")

	return nil
}
