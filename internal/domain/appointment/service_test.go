package appointment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/domain/rbac/rbactest"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/calendar"
	"github.com/mindlab/health/internal/platform/events"
)

// -- Mock Repository --

type mockRepo struct {
	mu      sync.Mutex
	store   map[uuid.UUID]*Appointment
	parties map[uuid.UUID]*Party
	links   *rbactest.Repo
}

func newMockRepo(links *rbactest.Repo) *mockRepo {
	return &mockRepo{
		store:   make(map[uuid.UUID]*Appointment),
		parties: make(map[uuid.UUID]*Party),
		links:   links,
	}
}

func (m *mockRepo) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.store[a.ID] = &cp
	m.links.AddAppointment(a.ID, a.PatientID, a.ProviderID)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("appointment")
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[a.ID]; !ok {
		return apperr.NotFound("appointment")
	}
	cp := *a
	m.store[a.ID] = &cp
	return nil
}

func (m *mockRepo) SetCalendarEvent(_ context.Context, id uuid.UUID, eventID *string, syncedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.store[id]
	if !ok {
		return apperr.NotFound("appointment")
	}
	a.CalendarEventID = eventID
	a.LastCalendarSync = &syncedAt
	return nil
}

func (m *mockRepo) ListForUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var r []*Appointment
	for _, a := range m.store {
		if a.PatientID == userID || a.ProviderID == userID {
			r = append(r, a)
		}
	}
	return r, len(r), nil
}

func (m *mockRepo) List(_ context.Context, f ListFilter, limit, offset int) ([]*Appointment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var r []*Appointment
	for _, a := range m.store {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		r = append(r, a)
	}
	return r, len(r), nil
}

func (m *mockRepo) GetParty(_ context.Context, id uuid.UUID) (*Party, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.parties[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return p, nil
}

func (m *mockRepo) ListByRoles(_ context.Context, roles []auth.Role) ([]*Party, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var r []*Party
	for _, p := range m.parties {
		for _, role := range roles {
			if p.Role == role && p.IsActive {
				r = append(r, p)
			}
		}
	}
	return r, nil
}

func (m *mockRepo) addParty(role auth.Role) *auth.Principal {
	p := rbactest.Principal(role)
	m.parties[p.ID] = &Party{ID: p.ID, Username: p.Username, Email: p.Username + "@example.com", Role: role, IsActive: true}
	return p
}

func (m *mockRepo) stored(id uuid.UUID) *Appointment {
	a, _ := m.GetByID(context.Background(), id)
	return a
}

// -- Calendar double --

type fakeSyncer struct {
	createErr error
	created   []calendar.AppointmentDetails
	updated   []string
	deleted   []string
}

func (f *fakeSyncer) Enabled() bool { return true }

func (f *fakeSyncer) CreateEvent(_ context.Context, d calendar.AppointmentDetails) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, d)
	return "evt-" + d.AppointmentID.String()[:8], nil
}

func (f *fakeSyncer) UpdateEvent(_ context.Context, eventID string, _ calendar.AppointmentDetails) error {
	f.updated = append(f.updated, eventID)
	return nil
}

func (f *fakeSyncer) DeleteEvent(_ context.Context, eventID string) error {
	f.deleted = append(f.deleted, eventID)
	return nil
}

func (f *fakeSyncer) Availability(_ context.Context, start, end time.Time) (*calendar.Availability, error) {
	return &calendar.Availability{Available: true, Message: "Time slot is available"}, nil
}

type countingPublisher struct{ events []events.Event }

func (c *countingPublisher) Publish(_ context.Context, e events.Event) error {
	c.events = append(c.events, e)
	return nil
}

type testEnv struct {
	svc       *Service
	repo      *mockRepo
	fx        *rbactest.Fixture
	pub       *countingPublisher
	patient   *auth.Principal
	therapist *auth.Principal
}

func newTestEnv() *testEnv {
	fx := rbactest.New()
	repo := newMockRepo(fx.Repo)
	svc := NewService(repo, fx.Policy, zerolog.Nop())
	pub := &countingPublisher{}
	svc.SetPublisher(pub)
	return &testEnv{
		svc:       svc,
		repo:      repo,
		fx:        fx,
		pub:       pub,
		patient:   repo.addParty(auth.RolePatient),
		therapist: repo.addParty(auth.RoleTherapist),
	}
}

func (e *testEnv) book(t *testing.T) *Appointment {
	t.Helper()
	a, err := e.svc.Create(context.Background(), e.patient, CreateRequest{
		ProviderID:  e.therapist.ID,
		ScheduledAt: time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	return a
}

// -- Tests --

func TestCreate_Defaults(t *testing.T) {
	env := newTestEnv()
	a := env.book(t)

	if a.Status != StatusScheduled {
		t.Errorf("expected scheduled, got %s", a.Status)
	}
	if a.DurationMinutes != 60 || a.AppointmentType != "consultation" {
		t.Errorf("unexpected defaults: %d %s", a.DurationMinutes, a.AppointmentType)
	}
	if a.PatientID != env.patient.ID || a.ProviderID != env.therapist.ID {
		t.Error("expected caller as patient and requested provider")
	}
	if a.CalendarEventID != nil {
		t.Error("expected no calendar event without a calendar")
	}
	if len(env.pub.events) != 1 {
		t.Fatalf("expected one event, got %d", len(env.pub.events))
	}
	topics := env.pub.events[0].Topics()
	want := []string{events.UserTopic(env.patient.ID), events.UserTopic(env.therapist.ID)}
	if len(topics) != 2 || topics[0] != want[0] || topics[1] != want[1] {
		t.Errorf("expected event addressed to patient and provider, got %v", topics)
	}
}

func TestCreate_CalendarSynced(t *testing.T) {
	env := newTestEnv()
	cal := &fakeSyncer{}
	env.svc.SetCalendar(cal)

	a := env.book(t)
	if a.CalendarEventID == nil || a.LastCalendarSync == nil {
		t.Fatal("expected calendar event id to be set")
	}
	stored := env.repo.stored(a.ID)
	if stored.CalendarEventID == nil || *stored.CalendarEventID != *a.CalendarEventID {
		t.Error("expected event id persisted")
	}
	if len(cal.created) != 1 || cal.created[0].ProviderEmail == "" || cal.created[0].PatientName == "" {
		t.Errorf("unexpected calendar payload: %+v", cal.created)
	}
}

func TestCreate_CalendarFailureStillPersists(t *testing.T) {
	env := newTestEnv()
	env.svc.SetCalendar(&fakeSyncer{createErr: errors.New("calendar api unavailable")})

	a := env.book(t)
	stored := env.repo.stored(a.ID)
	if stored == nil {
		t.Fatal("expected appointment row to be persisted")
	}
	if stored.CalendarEventID != nil || a.CalendarEventID != nil {
		t.Error("expected no sync id after calendar failure")
	}
}

func TestCreate_SyncDisabledByRequest(t *testing.T) {
	env := newTestEnv()
	cal := &fakeSyncer{}
	env.svc.SetCalendar(cal)
	off := false

	_, err := env.svc.Create(context.Background(), env.patient, CreateRequest{
		ProviderID: env.therapist.ID, ScheduledAt: time.Now(), SyncWithCalendar: &off,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cal.created) != 0 {
		t.Error("expected no calendar call")
	}
}

func TestCreate_ProviderChecks(t *testing.T) {
	env := newTestEnv()
	other := env.repo.addParty(auth.RolePatient)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, env.patient, CreateRequest{ProviderID: uuid.New(), ScheduledAt: time.Now()})
	if !apperr.IsNotFound(err) {
		t.Errorf("expected not found for unknown provider, got %v", err)
	}
	_, err = env.svc.Create(ctx, env.patient, CreateRequest{ProviderID: other.ID, ScheduledAt: time.Now()})
	if !apperr.IsNotFound(err) {
		t.Errorf("expected not found for non-provider, got %v", err)
	}
	_, err = env.svc.Create(ctx, env.patient, CreateRequest{ScheduledAt: time.Now()})
	if !apperr.IsValidation(err) {
		t.Errorf("expected validation for missing provider, got %v", err)
	}
	_, err = env.svc.Create(ctx, env.patient, CreateRequest{ProviderID: env.therapist.ID})
	if !apperr.IsValidation(err) {
		t.Errorf("expected validation for missing time, got %v", err)
	}
}

func TestGet_Ownership(t *testing.T) {
	env := newTestEnv()
	a := env.book(t)
	ctx := context.Background()

	if _, err := env.svc.Get(ctx, env.patient, a.ID); err != nil {
		t.Errorf("patient: unexpected error %v", err)
	}
	if _, err := env.svc.Get(ctx, env.therapist, a.ID); err != nil {
		t.Errorf("provider: unexpected error %v", err)
	}
	if _, err := env.svc.Get(ctx, rbactest.Principal(auth.RoleAdmin), a.ID); err != nil {
		t.Errorf("admin: unexpected error %v", err)
	}
	if _, err := env.svc.Get(ctx, rbactest.Principal(auth.RolePatient), a.ID); !apperr.IsForbidden(err) {
		t.Errorf("expected forbidden for unrelated patient, got %v", err)
	}
	if _, err := env.svc.Get(ctx, env.patient, uuid.New()); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	env := newTestEnv()
	cal := &fakeSyncer{}
	env.svc.SetCalendar(cal)
	a := env.book(t)
	ctx := context.Background()

	notes := "bring journal"
	dur := 45
	out, err := env.svc.Update(ctx, env.patient, a.ID, UpdateRequest{Notes: &notes, DurationMinutes: &dur})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Notes != notes || out.DurationMinutes != 45 {
		t.Errorf("unexpected update: %+v", out)
	}
	if len(cal.updated) != 1 {
		t.Errorf("expected calendar update, got %d", len(cal.updated))
	}

	bad := "postponed"
	if _, err := env.svc.Update(ctx, env.patient, a.ID, UpdateRequest{Status: &bad}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	zero := 0
	if _, err := env.svc.Update(ctx, env.patient, a.ID, UpdateRequest{DurationMinutes: &zero}); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := env.svc.Update(ctx, rbactest.Principal(auth.RoleTherapist), a.ID, UpdateRequest{Notes: &notes}); !apperr.IsForbidden(err) {
		t.Errorf("expected forbidden for unrelated provider, got %v", err)
	}
}

func TestUpdateStatus(t *testing.T) {
	env := newTestEnv()
	a := env.book(t)

	out, err := env.svc.UpdateStatus(context.Background(), env.therapist, a.ID, StatusConfirmed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != StatusConfirmed {
		t.Errorf("expected confirmed, got %s", out.Status)
	}
	if _, err := env.svc.UpdateStatus(context.Background(), env.therapist, a.ID, "done"); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestCancel_KeepsRow(t *testing.T) {
	env := newTestEnv()
	cal := &fakeSyncer{}
	env.svc.SetCalendar(cal)
	a := env.book(t)

	out, err := env.svc.Cancel(context.Background(), env.patient, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", out.Status)
	}
	stored := env.repo.stored(a.ID)
	if stored == nil || stored.Status != StatusCancelled {
		t.Error("expected row kept with cancelled status")
	}
	if len(cal.deleted) != 1 || stored.CalendarEventID != nil {
		t.Error("expected calendar event removed")
	}

	// cancelling twice is a no-op
	if _, err := env.svc.Cancel(context.Background(), env.patient, a.ID); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if len(cal.deleted) != 1 {
		t.Error("expected no second calendar delete")
	}
}

func TestDirectory(t *testing.T) {
	env := newTestEnv()
	env.repo.addParty(auth.RolePhysician)
	env.repo.addParty(auth.RoleHealthCoach)

	therapists, err := env.svc.Therapists(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(therapists) != 1 {
		t.Errorf("expected 1 therapist, got %d", len(therapists))
	}

	providers, err := env.svc.Providers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(providers) != 3 {
		t.Errorf("expected 3 providers, got %d", len(providers))
	}
}

func TestAvailability(t *testing.T) {
	env := newTestEnv()
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	av, err := env.svc.Availability(context.Background(), start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if av.Available || av.Message == "" {
		t.Errorf("expected unavailable with message when calendar disabled, got %+v", av)
	}

	if _, err := env.svc.Availability(context.Background(), start, start); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}

	env.svc.SetCalendar(&fakeSyncer{})
	av, _ = env.svc.Availability(context.Background(), start, start.Add(time.Hour))
	if !av.Available {
		t.Error("expected available from calendar")
	}
}
