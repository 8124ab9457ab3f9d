package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/domain/rbac"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/calendar"
	"github.com/mindlab/health/internal/platform/events"
)

type Service struct {
	repo      Repository
	policy    rbac.Policy
	calendar  calendar.Syncer
	publisher events.Publisher
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo Repository, policy rbac.Policy, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		policy:    policy,
		calendar:  calendar.Nop{},
		publisher: events.Nop{},
		logger:    logger,
		now:       time.Now,
	}
}

// SetCalendar attaches the external calendar collaborator.
func (s *Service) SetCalendar(c calendar.Syncer) { s.calendar = c }

// SetPublisher attaches the domain event publisher.
func (s *Service) SetPublisher(p events.Publisher) { s.publisher = p }

func (s *Service) provider(ctx context.Context, id uuid.UUID) (*Party, error) {
	p, err := s.repo.GetParty(ctx, id)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, apperr.NotFound("provider")
		}
		return nil, err
	}
	if !p.Role.IsProvider() || !p.IsActive {
		return nil, apperr.NotFound("provider")
	}
	return p, nil
}

// Create books an appointment for the caller with a provider. Calendar sync
// runs after the row is persisted and never fails the request.
func (s *Service) Create(ctx context.Context, p *auth.Principal, req CreateRequest) (*Appointment, error) {
	if req.ProviderID == uuid.Nil {
		return nil, apperr.Validation("provider_id is required")
	}
	if req.ScheduledAt.IsZero() {
		return nil, apperr.Validation("scheduled_at is required")
	}
	if req.DurationMinutes < 0 {
		return nil, apperr.Validation("duration_minutes must be positive")
	}

	prov, err := s.provider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}

	a := &Appointment{
		PatientID:        p.ID,
		ProviderID:       prov.ID,
		ScheduledAt:      req.ScheduledAt.UTC(),
		DurationMinutes:  req.DurationMinutes,
		Status:           StatusScheduled,
		Notes:            req.Notes,
		AppointmentType:  req.AppointmentType,
		Location:         req.Location,
		SyncWithCalendar: true,
	}
	if a.DurationMinutes == 0 {
		a.DurationMinutes = defaultDuration
	}
	if a.AppointmentType == "" {
		a.AppointmentType = defaultType
	}
	if req.SyncWithCalendar != nil {
		a.SyncWithCalendar = *req.SyncWithCalendar
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("patient_id", a.PatientID.String()).
		Str("provider_id", a.ProviderID.String()).
		Msg("appointment created")

	if a.SyncWithCalendar {
		s.syncCreate(ctx, a, prov)
	}
	s.emit(ctx, events.AppointmentCreated, a)
	return a, nil
}

func (s *Service) details(ctx context.Context, a *Appointment, prov *Party) calendar.AppointmentDetails {
	d := calendar.AppointmentDetails{
		AppointmentID:   a.ID,
		AppointmentType: a.AppointmentType,
		Start:           a.ScheduledAt,
		Duration:        a.Duration(),
		Location:        a.Location,
		Notes:           a.Notes,
	}
	if prov == nil {
		prov, _ = s.repo.GetParty(ctx, a.ProviderID)
	}
	if prov != nil {
		d.ProviderName, d.ProviderEmail = prov.Username, prov.Email
	}
	if pat, err := s.repo.GetParty(ctx, a.PatientID); err == nil {
		d.PatientName, d.PatientEmail = pat.Username, pat.Email
	}
	return d
}

func (s *Service) syncCreate(ctx context.Context, a *Appointment, prov *Party) {
	if !s.calendar.Enabled() {
		return
	}
	eventID, err := s.calendar.CreateEvent(ctx, s.details(ctx, a, prov))
	if err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("calendar sync failed")
		return
	}
	s.storeEvent(ctx, a, &eventID)
}

func (s *Service) syncUpdate(ctx context.Context, a *Appointment) {
	if !s.calendar.Enabled() || !a.SyncWithCalendar {
		return
	}
	if a.CalendarEventID == nil {
		s.syncCreate(ctx, a, nil)
		return
	}
	if err := s.calendar.UpdateEvent(ctx, *a.CalendarEventID, s.details(ctx, a, nil)); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("calendar update failed")
		return
	}
	s.storeEvent(ctx, a, a.CalendarEventID)
}

func (s *Service) syncDelete(ctx context.Context, a *Appointment) {
	if !s.calendar.Enabled() || a.CalendarEventID == nil {
		return
	}
	if err := s.calendar.DeleteEvent(ctx, *a.CalendarEventID); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("calendar delete failed")
		return
	}
	s.storeEvent(ctx, a, nil)
}

func (s *Service) storeEvent(ctx context.Context, a *Appointment, eventID *string) {
	now := s.now().UTC()
	if err := s.repo.SetCalendarEvent(ctx, a.ID, eventID, now); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", a.ID.String()).Msg("failed to store calendar event id")
		return
	}
	a.CalendarEventID = eventID
	a.LastCalendarSync = &now
}

// emit notifies both parties with a single event.
func (s *Service) emit(ctx context.Context, eventType string, a *Appointment) {
	evt := events.New(eventType, events.UserTopic(a.PatientID), a).WithCC(events.UserTopic(a.ProviderID))
	events.Emit(ctx, s.publisher, s.logger, evt)
}

// Get loads an appointment the caller takes part in.
func (s *Service) Get(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	ok, err := s.policy.CanAccessAppointment(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Forbidden("access to this appointment denied")
	}
	return a, nil
}

func (s *Service) Update(ctx context.Context, p *auth.Principal, id uuid.UUID, req UpdateRequest) (*Appointment, error) {
	a, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if req.ScheduledAt != nil {
		if req.ScheduledAt.IsZero() {
			return nil, apperr.Validation("scheduled_at must not be empty")
		}
		a.ScheduledAt = req.ScheduledAt.UTC()
	}
	if req.DurationMinutes != nil {
		if *req.DurationMinutes <= 0 {
			return nil, apperr.Validation("duration_minutes must be positive")
		}
		a.DurationMinutes = *req.DurationMinutes
	}
	if req.Notes != nil {
		a.Notes = *req.Notes
	}
	if req.AppointmentType != nil && *req.AppointmentType != "" {
		a.AppointmentType = *req.AppointmentType
	}
	if req.Location != nil {
		a.Location = *req.Location
	}
	if req.SyncWithCalendar != nil {
		a.SyncWithCalendar = *req.SyncWithCalendar
	}
	if req.Status != nil {
		if !validStatuses[*req.Status] {
			return nil, apperr.Validation("invalid status: %s", *req.Status)
		}
		a.Status = *req.Status
	}

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	if a.Status == StatusCancelled {
		s.syncDelete(ctx, a)
	} else {
		s.syncUpdate(ctx, a)
	}
	s.emit(ctx, events.AppointmentUpdated, a)
	return a, nil
}

func (s *Service) UpdateStatus(ctx context.Context, p *auth.Principal, id uuid.UUID, status string) (*Appointment, error) {
	if !validStatuses[status] {
		return nil, apperr.Validation("invalid status: %s", status)
	}
	return s.Update(ctx, p, id, UpdateRequest{Status: &status})
}

// Cancel moves the appointment to cancelled. Rows are never removed.
func (s *Service) Cancel(ctx context.Context, p *auth.Principal, id uuid.UUID) (*Appointment, error) {
	a, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if a.Status == StatusCancelled {
		return a, nil
	}
	a.Status = StatusCancelled
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	s.syncDelete(ctx, a)
	s.emit(ctx, events.AppointmentCancelled, a)
	return a, nil
}

// Mine lists appointments where the caller is patient or provider.
func (s *Service) Mine(ctx context.Context, p *auth.Principal, limit, offset int) ([]*Appointment, int, error) {
	return s.repo.ListForUser(ctx, p.ID, limit, offset)
}

func (s *Service) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	if f.Status != "" && !validStatuses[f.Status] {
		return nil, 0, apperr.Validation("invalid status: %s", f.Status)
	}
	return s.repo.List(ctx, f, limit, offset)
}

func (s *Service) Therapists(ctx context.Context) ([]*Party, error) {
	return s.repo.ListByRoles(ctx, []auth.Role{auth.RoleTherapist})
}

func (s *Service) Providers(ctx context.Context) ([]*Party, error) {
	return s.repo.ListByRoles(ctx, auth.ProviderRoles())
}

// Availability passes a free/busy query to the calendar. Calendar failures
// are reported as unavailable rather than as errors.
func (s *Service) Availability(ctx context.Context, start, end time.Time) (*calendar.Availability, error) {
	if !end.After(start) {
		return nil, apperr.Validation("end must be after start")
	}
	av, err := s.calendar.Availability(ctx, start, end)
	if err != nil {
		s.logger.Warn().Err(err).Msg("calendar availability check failed")
		return &calendar.Availability{Available: false, Message: "Unable to check availability"}, nil
	}
	return av, nil
}
