// Package calendar mirrors appointments into an external calendar. Sync is
// best-effort: callers log failures and carry on.
package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrDisabled is returned by Nop for write operations.
var ErrDisabled = errors.New("calendar sync disabled")

// AppointmentDetails is the payload mirrored into an external event.
type AppointmentDetails struct {
	AppointmentID   uuid.UUID
	AppointmentType string
	Start           time.Time
	Duration        time.Duration
	PatientName     string
	PatientEmail    string
	ProviderName    string
	ProviderEmail   string
	Location        string
	Notes           string
}

// End returns Start plus Duration, defaulting to one hour.
func (d AppointmentDetails) End() time.Time {
	if d.Duration <= 0 {
		return d.Start.Add(time.Hour)
	}
	return d.Start.Add(d.Duration)
}

type BusyPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Availability is the free/busy answer for a window.
type Availability struct {
	Available bool         `json:"available"`
	BusyTimes []BusyPeriod `json:"busy_times,omitempty"`
	Message   string       `json:"message"`
}

// Syncer is the external calendar collaborator.
type Syncer interface {
	Enabled() bool
	CreateEvent(ctx context.Context, d AppointmentDetails) (eventID string, err error)
	UpdateEvent(ctx context.Context, eventID string, d AppointmentDetails) error
	DeleteEvent(ctx context.Context, eventID string) error
	Availability(ctx context.Context, start, end time.Time) (*Availability, error)
}

// Nop is used when no calendar is configured.
type Nop struct{}

func (Nop) Enabled() bool { return false }

func (Nop) CreateEvent(context.Context, AppointmentDetails) (string, error) {
	return "", ErrDisabled
}

func (Nop) UpdateEvent(context.Context, string, AppointmentDetails) error { return ErrDisabled }

func (Nop) DeleteEvent(context.Context, string) error { return ErrDisabled }

func (Nop) Availability(context.Context, time.Time, time.Time) (*Availability, error) {
	return &Availability{Available: false, Message: "Calendar service not available"}, nil
}
