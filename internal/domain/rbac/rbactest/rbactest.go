// Package rbactest provides an in-memory permission catalog seeded with the
// default grants, for tests of packages that depend on rbac.Policy.
package rbactest

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mindlab/health/internal/domain/rbac"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
)

type appointment struct{ patient, provider uuid.UUID }

// Repo is a map-backed rbac.Repository.
type Repo struct {
	mu           sync.Mutex
	perms        map[string]*rbac.Permission
	grants       map[string]map[string]bool
	appointments map[uuid.UUID]appointment
}

var _ rbac.Repository = (*Repo)(nil)

// NewRepo returns a Repo holding rbac.Catalog and rbac.DefaultGrants.
func NewRepo() *Repo {
	r := &Repo{
		perms:        make(map[string]*rbac.Permission),
		grants:       make(map[string]map[string]bool),
		appointments: make(map[uuid.UUID]appointment),
	}
	ctx := context.Background()
	for _, d := range rbac.Catalog {
		_ = r.UpsertPermission(ctx, d)
	}
	for role, names := range rbac.DefaultGrants() {
		for _, n := range names {
			_, _ = r.Grant(ctx, role.String(), n)
		}
	}
	return r
}

func (r *Repo) ListPermissions(_ context.Context) ([]*rbac.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*rbac.Permission, 0, len(r.perms))
	for _, p := range r.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *Repo) PermissionsForRole(_ context.Context, role string) ([]*rbac.Permission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*rbac.Permission
	for n := range r.grants[role] {
		out = append(out, r.perms[n])
	}
	return out, nil
}

func (r *Repo) UpsertPermission(_ context.Context, d rbac.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.perms[d.Name] = &rbac.Permission{ID: uuid.New(), Name: d.Name, Description: d.Description, Module: d.Module, Action: d.Action}
	return nil
}

func (r *Repo) Grant(_ context.Context, role, permission string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.perms[permission]; !ok {
		return false, nil
	}
	if r.grants[role] == nil {
		r.grants[role] = make(map[string]bool)
	}
	if r.grants[role][permission] {
		return false, nil
	}
	r.grants[role][permission] = true
	return true, nil
}

// Revoke removes a grant.
func (r *Repo) Revoke(role auth.Role, permission string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.grants[role.String()], permission)
}

// AddAppointment records an appointment linking patient and provider.
func (r *Repo) AddAppointment(id, patient, provider uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appointments[id] = appointment{patient: patient, provider: provider}
}

func (r *Repo) AppointmentParties(_ context.Context, id uuid.UUID) (uuid.UUID, uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return uuid.Nil, uuid.Nil, apperr.NotFound("appointment")
	}
	return a.patient, a.provider, nil
}

func (r *Repo) HasAppointmentLink(_ context.Context, providerID, patientID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appointments {
		if a.provider == providerID && a.patient == patientID {
			return true, nil
		}
	}
	return false, nil
}

// Fixture bundles a seeded Repo with the real Resolver and Authorizer.
type Fixture struct {
	Repo     *Repo
	Resolver *rbac.Resolver
	Policy   rbac.Policy
}

func New() *Fixture {
	repo := NewRepo()
	res := rbac.NewResolver(repo, 0)
	return &Fixture{Repo: repo, Resolver: res, Policy: rbac.NewPolicy(res, rbac.NewAuthorizer(repo))}
}

// Principal returns a fresh principal with role.
func Principal(role auth.Role) *auth.Principal {
	return &auth.Principal{ID: uuid.New(), Username: string(role) + "-" + uuid.NewString()[:8], Role: role}
}
