// Package events carries domain notifications to realtime clients and to
// the message broker. Publishing happens after the database write commits
// and is best-effort: a failed publish never fails the request.
package events

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Event types.
const (
	AppointmentCreated   = "appointment.created"
	AppointmentUpdated   = "appointment.updated"
	AppointmentCancelled = "appointment.cancelled"
	MessageCreated       = "message.created"
	SecurityAlertRaised  = "security.alert_raised"
	PatientAssigned      = "careteam.patient_assigned"
	HealthRecordCreated  = "health_record.created"
	EarningsRecorded     = "earnings.recorded"
	UserRoleChanged      = "user.role_changed"
)

// Event is one notification. Topic selects realtime subscribers, usually
// UserTopic(recipient), and CC adds further topics for the same event;
// Type doubles as the broker routing key.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Topic      string    `json:"topic"`
	CC         []string  `json:"cc,omitempty"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

// New builds an event with a fresh id and timestamp.
func New(eventType, topic string, payload any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Topic:      topic,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

// WithCC returns a copy of e also addressed to topics.
func (e Event) WithCC(topics ...string) Event {
	e.CC = append(append([]string(nil), e.CC...), topics...)
	return e
}

// Topics lists Topic followed by CC, without blanks or repeats.
func (e Event) Topics() []string {
	out := make([]string, 0, 1+len(e.CC))
	seen := make(map[string]bool, 1+len(e.CC))
	for _, t := range append([]string{e.Topic}, e.CC...) {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// UserTopic is the realtime topic for one user.
func UserTopic(id uuid.UUID) string {
	return "user:" + id.String()
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Emit publishes evt and logs a failure instead of returning it.
func Emit(ctx context.Context, pub Publisher, logger zerolog.Logger, evt Event) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, evt); err != nil {
		logger.Warn().Err(err).
			Str("event_type", evt.Type).
			Str("topic", evt.Topic).
			Msg("event publish failed")
	}
}
