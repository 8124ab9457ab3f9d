package rbac

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
)

type appointmentParties struct{ patient, provider uuid.UUID }

type mockRepo struct {
	mu           sync.Mutex
	perms        map[string]*Permission
	grants       map[string]map[string]bool
	appointments map[uuid.UUID]appointmentParties
	roleLoads    int
	err          error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		perms:        make(map[string]*Permission),
		grants:       make(map[string]map[string]bool),
		appointments: make(map[uuid.UUID]appointmentParties),
	}
}

func (m *mockRepo) ListPermissions(_ context.Context) ([]*Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Permission
	for _, p := range m.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockRepo) PermissionsForRole(_ context.Context, role string) ([]*Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roleLoads++
	if m.err != nil {
		return nil, m.err
	}
	var out []*Permission
	for name := range m.grants[role] {
		out = append(out, m.perms[name])
	}
	return out, nil
}

func (m *mockRepo) UpsertPermission(_ context.Context, d Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.perms[d.Name]; ok {
		p.Description, p.Module, p.Action = d.Description, d.Module, d.Action
		return nil
	}
	m.perms[d.Name] = &Permission{ID: uuid.New(), Name: d.Name, Description: d.Description, Module: d.Module, Action: d.Action}
	return nil
}

func (m *mockRepo) Grant(_ context.Context, role, permission string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.perms[permission]; !ok {
		return false, nil
	}
	if m.grants[role] == nil {
		m.grants[role] = make(map[string]bool)
	}
	if m.grants[role][permission] {
		return false, nil
	}
	m.grants[role][permission] = true
	return true, nil
}

func (m *mockRepo) AppointmentParties(_ context.Context, id uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	a, ok := m.appointments[id]
	if !ok {
		return uuid.Nil, uuid.Nil, apperr.NotFound("appointment")
	}
	return a.patient, a.provider, nil
}

func (m *mockRepo) HasAppointmentLink(_ context.Context, providerID, patientID uuid.UUID) (bool, error) {
	for _, a := range m.appointments {
		if a.provider == providerID && a.patient == patientID {
			return true, nil
		}
	}
	return false, nil
}

// define adds a permission to the catalog and grants it to roles.
func (m *mockRepo) define(name, module string, roles ...auth.Role) {
	_ = m.UpsertPermission(context.Background(), Definition{Name: name, Module: module, Action: "view"})
	for _, r := range roles {
		_, _ = m.Grant(context.Background(), r.String(), name)
	}
}

func principal(role auth.Role) *auth.Principal {
	return &auth.Principal{ID: uuid.New(), Username: string(role) + "-user", Role: role}
}
