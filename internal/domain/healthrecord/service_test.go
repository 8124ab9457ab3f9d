package healthrecord

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/domain/rbac/rbactest"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/internal/platform/events"
)

// -- Mock Repository --

type mockRepo struct {
	mu       sync.Mutex
	store    map[uuid.UUID]*Record
	patients map[uuid.UUID]bool
	links    *mockAssignments
}

func newMockRepo(links *mockAssignments) *mockRepo {
	return &mockRepo{store: make(map[uuid.UUID]*Record), patients: make(map[uuid.UUID]bool), links: links}
}

func (m *mockRepo) Create(_ context.Context, h *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h.ID = uuid.New()
	h.CreatedAt = time.Now()
	h.UpdatedAt = h.CreatedAt
	cp := *h
	m.store[h.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.store[id]
	if !ok {
		return nil, apperr.NotFound("health record")
	}
	cp := *h
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, h *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[h.ID]; !ok {
		return apperr.NotFound("health record")
	}
	cp := *h
	m.store[h.ID] = &cp
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[id]; !ok {
		return apperr.NotFound("health record")
	}
	delete(m.store, id)
	return nil
}

func (m *mockRepo) List(ctx context.Context, f Filter, limit, offset int) ([]*Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Record
	for _, h := range m.store {
		if f.PatientID != nil && h.PatientID != *f.PatientID {
			continue
		}
		if f.AssignedTo != nil {
			if ok, _ := m.links.IsAssigned(ctx, *f.AssignedTo, h.PatientID); !ok {
				continue
			}
		}
		if f.Status != "" && h.Status != f.Status {
			continue
		}
		if f.RecordType != "" && h.RecordType != f.RecordType {
			continue
		}
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordDate.After(out[j].RecordDate) })
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return out[offset:end], total, nil
}

func (m *mockRepo) IsPatient(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.patients[id], nil
}

type mockAssignments struct {
	mu    sync.Mutex
	links map[[2]uuid.UUID]bool
}

func (m *mockAssignments) link(provider, patient uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[[2]uuid.UUID{provider, patient}] = true
}

func (m *mockAssignments) IsAssigned(_ context.Context, provider, patient uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.links[[2]uuid.UUID{provider, patient}], nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

// -- Helpers --

type testEnv struct {
	svc       *Service
	repo      *mockRepo
	links     *mockAssignments
	fx        *rbactest.Fixture
	pub       *recordingPublisher
	admin     *auth.Principal
	patient   *auth.Principal
	physician *auth.Principal
	therapist *auth.Principal
}

func newTestEnv() *testEnv {
	links := &mockAssignments{links: make(map[[2]uuid.UUID]bool)}
	repo := newMockRepo(links)
	fx := rbactest.New()
	svc := NewService(repo, fx.Resolver, links, zerolog.Nop())
	pub := &recordingPublisher{}
	svc.SetPublisher(pub)

	env := &testEnv{
		svc:       svc,
		repo:      repo,
		links:     links,
		fx:        fx,
		pub:       pub,
		admin:     rbactest.Principal(auth.RoleAdmin),
		patient:   rbactest.Principal(auth.RolePatient),
		physician: rbactest.Principal(auth.RolePhysician),
		therapist: rbactest.Principal(auth.RoleTherapist),
	}
	repo.patients[env.patient.ID] = true
	links.link(env.physician.ID, env.patient.ID)
	return env
}

func (e *testEnv) record(t *testing.T, by *auth.Principal) *Record {
	t.Helper()
	h, err := e.svc.Create(context.Background(), by, CreateRequest{PatientID: e.patient.ID, Title: "Initial assessment"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return h
}

func ptr[T any](v T) *T { return &v }

// -- Tests --

func TestCreate_AssignedProvider(t *testing.T) {
	env := newTestEnv()
	h := env.record(t, env.physician)

	if h.ProviderID != env.physician.ID {
		t.Errorf("expected caller as provider, got %s", h.ProviderID)
	}
	if h.RecordType != defaultRecordType || h.Status != StatusActive {
		t.Errorf("unexpected defaults: %s %s", h.RecordType, h.Status)
	}
	if len(env.pub.events) != 1 || env.pub.events[0].Type != events.HealthRecordCreated {
		t.Fatalf("expected health_record.created event, got %+v", env.pub.events)
	}
	if env.pub.events[0].Topic != events.UserTopic(env.patient.ID) {
		t.Errorf("expected event for patient, got %s", env.pub.events[0].Topic)
	}
}

func TestCreate_Rules(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.svc.Create(ctx, env.therapist, CreateRequest{PatientID: env.patient.ID, Title: "x"})
	if !apperr.IsForbidden(err) {
		t.Errorf("expected unassigned provider to be forbidden, got %v", err)
	}

	_, err = env.svc.Create(ctx, env.admin, CreateRequest{PatientID: uuid.New(), Title: "x"})
	if !apperr.IsNotFound(err) {
		t.Errorf("expected unknown patient to be not found, got %v", err)
	}

	_, err = env.svc.Create(ctx, env.physician, CreateRequest{PatientID: env.patient.ID, Title: "  "})
	if !apperr.IsValidation(err) {
		t.Errorf("expected missing title to fail validation, got %v", err)
	}

	_, err = env.svc.Create(ctx, env.physician, CreateRequest{PatientID: env.patient.ID, Title: "x", Vitals: Vitals{WeightKG: ptr(-3.0)}})
	if !apperr.IsValidation(err) {
		t.Errorf("expected negative weight to fail validation, got %v", err)
	}

	_, err = env.svc.Create(ctx, env.physician, CreateRequest{Title: "x"})
	if !apperr.IsValidation(err) {
		t.Errorf("expected missing patient to fail validation, got %v", err)
	}

	if _, err := env.svc.Create(ctx, env.admin, CreateRequest{PatientID: env.patient.ID, Title: "Admin note"}); err != nil {
		t.Errorf("expected admin to create without assignment, got %v", err)
	}
}

func TestValidateVitals_FirstInvalidInFieldOrder(t *testing.T) {
	v := Vitals{
		HeightCM:     ptr(170.0),
		WeightKG:     ptr(0.0),
		BPSystolic:   ptr(-1),
		HeartRateBPM: ptr(-5),
	}
	for i := 0; i < 20; i++ {
		err := validateVitals(v)
		if !apperr.IsValidation(err) || err.Error() != "weight_kg must be positive" {
			t.Fatalf("expected weight_kg reported first, got %v", err)
		}
	}

	v.WeightKG = nil
	if err := validateVitals(v); err == nil || err.Error() != "blood_pressure_systolic must be positive" {
		t.Errorf("expected blood_pressure_systolic, got %v", err)
	}
	if err := validateVitals(Vitals{HeartRateBPM: ptr(60)}); err != nil {
		t.Errorf("expected valid vitals, got %v", err)
	}
}

func TestList_Scoping(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	env.record(t, env.physician)

	other := rbactest.Principal(auth.RolePatient)
	env.repo.patients[other.ID] = true
	if _, err := env.svc.Create(ctx, env.admin, CreateRequest{PatientID: other.ID, Title: "Other"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name  string
		p     *auth.Principal
		f     Filter
		total int
		err   func(error) bool
	}{
		{"admin sees all", env.admin, Filter{}, 2, nil},
		{"admin filters by patient", env.admin, Filter{PatientID: &other.ID}, 1, nil},
		{"physician sees assigned", env.physician, Filter{}, 1, nil},
		{"physician asks for assigned patient", env.physician, Filter{PatientID: &env.patient.ID}, 1, nil},
		{"physician asks for other patient", env.physician, Filter{PatientID: &other.ID}, 0, apperr.IsForbidden},
		{"unassigned therapist sees nothing", env.therapist, Filter{}, 0, nil},
		{"patient sees own", env.patient, Filter{}, 1, nil},
		{"patient asks for someone else", env.patient, Filter{PatientID: &other.ID}, 0, apperr.IsForbidden},
		{"partner forbidden", rbactest.Principal(auth.RolePartner), Filter{}, 0, apperr.IsForbidden},
		{"bad status", env.admin, Filter{Status: "archived"}, 0, apperr.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total, err := env.svc.List(ctx, tt.p, tt.f, 50, 0)
			if tt.err != nil {
				if !tt.err(err) {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if total != tt.total {
				t.Errorf("expected %d records, got %d", tt.total, total)
			}
		})
	}
}

func TestList_IgnoresCallerAssignedTo(t *testing.T) {
	env := newTestEnv()
	env.record(t, env.physician)

	// A patient cannot widen the scope by supplying AssignedTo.
	_, total, err := env.svc.List(context.Background(), env.patient, Filter{AssignedTo: &env.physician.ID}, 50, 0)
	if err != nil || total != 1 {
		t.Errorf("expected own record only, got %d %v", total, err)
	}
}

func TestGet_Access(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	h := env.record(t, env.physician)

	for _, p := range []*auth.Principal{env.admin, env.patient, env.physician} {
		if _, err := env.svc.Get(ctx, p, h.ID); err != nil {
			t.Errorf("expected %s to read the record, got %v", p.Role, err)
		}
	}
	if _, err := env.svc.Get(ctx, env.therapist, h.ID); !apperr.IsForbidden(err) {
		t.Errorf("expected unassigned therapist to be forbidden, got %v", err)
	}
	if _, err := env.svc.Get(ctx, rbactest.Principal(auth.RolePatient), h.ID); !apperr.IsForbidden(err) {
		t.Errorf("expected another patient to be forbidden, got %v", err)
	}
	if _, err := env.svc.Get(ctx, env.admin, uuid.New()); !apperr.IsNotFound(err) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestUpdate_Access(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	h := env.record(t, env.physician)

	if _, err := env.svc.Update(ctx, env.therapist, h.ID, UpdateRequest{Diagnosis: ptr("x")}); !apperr.IsForbidden(err) {
		t.Errorf("expected unassigned therapist to be forbidden, got %v", err)
	}

	// An assigned provider who did not author the record may edit it.
	env.links.link(env.therapist.ID, env.patient.ID)
	updated, err := env.svc.Update(ctx, env.therapist, h.ID, UpdateRequest{
		Diagnosis: ptr("generalized anxiety"),
		Status:    ptr(StatusFollowUpNeeded),
		Vitals:    &Vitals{HeartRateBPM: ptr(72)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Diagnosis != "generalized anxiety" || updated.Status != StatusFollowUpNeeded {
		t.Errorf("unexpected record: %+v", updated)
	}
	if updated.HeartRateBPM == nil || *updated.HeartRateBPM != 72 {
		t.Error("expected vitals replaced")
	}
	if updated.Title != "Initial assessment" {
		t.Errorf("expected untouched title, got %q", updated.Title)
	}

	if _, err := env.svc.Update(ctx, env.admin, h.ID, UpdateRequest{Status: ptr("archived")}); !apperr.IsValidation(err) {
		t.Errorf("expected invalid status to fail validation, got %v", err)
	}
}

func TestUpdate_AuthorWithoutAssignment(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	h := env.record(t, env.physician)

	env.links.mu.Lock()
	delete(env.links.links, [2]uuid.UUID{env.physician.ID, env.patient.ID})
	env.links.mu.Unlock()

	if _, err := env.svc.Update(ctx, env.physician, h.ID, UpdateRequest{Title: ptr("Revised")}); err != nil {
		t.Errorf("expected author to edit own record, got %v", err)
	}

	env.fx.Repo.Revoke(auth.RolePhysician, "health_records.edit_own")
	if _, err := env.svc.Update(ctx, env.physician, h.ID, UpdateRequest{Title: ptr("Again")}); !apperr.IsForbidden(err) {
		t.Errorf("expected forbidden once edit_own is revoked, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	h := env.record(t, env.physician)

	if err := env.svc.Delete(ctx, env.admin, h.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := env.svc.Delete(ctx, env.admin, h.ID); !apperr.IsNotFound(err) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}
