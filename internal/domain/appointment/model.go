package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/mindlab/health/internal/platform/auth"
)

const (
	StatusScheduled = "scheduled"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

var validStatuses = map[string]bool{
	StatusScheduled: true, StatusConfirmed: true, StatusCompleted: true,
	StatusCancelled: true, StatusNoShow: true,
}

const (
	defaultDuration = 60
	defaultType     = "consultation"
)

// Appointment maps to the appointments table.
type Appointment struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id"`
	ProviderID       uuid.UUID  `db:"provider_id" json:"provider_id"`
	ScheduledAt      time.Time  `db:"scheduled_at" json:"scheduled_at"`
	DurationMinutes  int        `db:"duration_minutes" json:"duration_minutes"`
	Status           string     `db:"status" json:"status"`
	Notes            string     `db:"notes" json:"notes"`
	AppointmentType  string     `db:"appointment_type" json:"appointment_type"`
	Location         string     `db:"location" json:"location"`
	CalendarEventID  *string    `db:"calendar_event_id" json:"calendar_event_id,omitempty"`
	SyncWithCalendar bool       `db:"sync_with_calendar" json:"sync_with_calendar"`
	LastCalendarSync *time.Time `db:"last_calendar_sync" json:"last_calendar_sync,omitempty"`
	ReminderSent     bool       `db:"reminder_sent" json:"reminder_sent"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

func (a *Appointment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

type CreateRequest struct {
	ProviderID       uuid.UUID `json:"provider_id"`
	ScheduledAt      time.Time `json:"scheduled_at"`
	DurationMinutes  int       `json:"duration_minutes"`
	Notes            string    `json:"notes"`
	AppointmentType  string    `json:"appointment_type"`
	Location         string    `json:"location"`
	SyncWithCalendar *bool     `json:"sync_with_calendar"`
}

// UpdateRequest carries the fields to change; nil fields are left alone.
type UpdateRequest struct {
	ScheduledAt      *time.Time `json:"scheduled_at"`
	DurationMinutes  *int       `json:"duration_minutes"`
	Notes            *string    `json:"notes"`
	AppointmentType  *string    `json:"appointment_type"`
	Location         *string    `json:"location"`
	Status           *string    `json:"status"`
	SyncWithCalendar *bool      `json:"sync_with_calendar"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

// Party is the directory view of a user taking part in appointments.
type Party struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     auth.Role `json:"role"`
	IsActive bool      `json:"is_active"`
}

// ListFilter narrows the admin listing.
type ListFilter struct {
	Status     string
	ProviderID *uuid.UUID
	PatientID  *uuid.UUID
	From       *time.Time
	To         *time.Time
}
