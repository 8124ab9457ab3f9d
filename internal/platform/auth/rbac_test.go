package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mindlab/health/internal/platform/apperr"
)

// fakeChecker grants permissions per role; admin holds everything.
type fakeChecker struct {
	grants  map[Role][]string
	modules map[Role][]string
	err     error
}

func (f *fakeChecker) HasPermission(_ context.Context, p *Principal, perm string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if p.Role.IsAdmin() {
		return true, nil
	}
	for _, g := range f.grants[p.Role] {
		if g == perm {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeChecker) CanAccessModule(_ context.Context, p *Principal, module string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if p.Role.IsAdmin() {
		return true, nil
	}
	for _, m := range f.modules[p.Role] {
		if m == module {
			return true, nil
		}
	}
	return false, nil
}

func testChecker() *fakeChecker {
	return &fakeChecker{
		grants: map[Role][]string{
			RolePatient:   {"appointments.create", "appointments.view_own"},
			RoleTherapist: {"appointments.view_own", "patients.view_assigned"},
		},
		modules: map[Role][]string{
			RolePatient:   {"appointments"},
			RoleTherapist: {"appointments", "patients"},
		},
	}
}

func contextAs(role Role) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	p := &Principal{ID: uuid.New(), Username: "u-" + string(role), Role: role}
	req = req.WithContext(WithPrincipal(req.Context(), p))
	return e.NewContext(req, httptest.NewRecorder())
}

func TestRequirePermission(t *testing.T) {
	checker := testChecker()
	tests := []struct {
		role    Role
		perm    string
		allowed bool
	}{
		{RolePatient, "appointments.create", true},
		{RolePatient, "patients.view_assigned", false},
		{RoleTherapist, "patients.view_assigned", true},
		{RoleTherapist, "appointments.create", false},
		{RolePartner, "appointments.view_own", false},
		{RoleAdmin, "patients.view_assigned", true},
		{RoleAdmin, "anything.at_all", true},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+tt.perm, func(t *testing.T) {
			err := RequirePermission(checker, tt.perm)(okHandler)(contextAs(tt.role))
			if tt.allowed && err != nil {
				t.Errorf("expected access, got %v", err)
			}
			if !tt.allowed && !apperr.IsForbidden(err) {
				t.Errorf("expected forbidden, got %v", err)
			}
		})
	}
}

func TestRequireAnyPermission(t *testing.T) {
	checker := testChecker()
	mw := RequireAnyPermission(checker, "patients.view_all", "patients.view_assigned")

	if err := mw(okHandler)(contextAs(RoleTherapist)); err != nil {
		t.Errorf("therapist should pass with one of the permissions, got %v", err)
	}
	if err := mw(okHandler)(contextAs(RolePatient)); !apperr.IsForbidden(err) {
		t.Errorf("patient should be forbidden, got %v", err)
	}
}

func TestRequireModule(t *testing.T) {
	checker := testChecker()
	mw := RequireModule(checker, "patients")

	if err := mw(okHandler)(contextAs(RoleTherapist)); err != nil {
		t.Errorf("therapist should access patients module, got %v", err)
	}
	if err := mw(okHandler)(contextAs(RolePatient)); !apperr.IsForbidden(err) {
		t.Errorf("patient should be forbidden, got %v", err)
	}
	if err := mw(okHandler)(contextAs(RoleAdmin)); err != nil {
		t.Errorf("admin should access every module, got %v", err)
	}
}

func TestRequirePermission_NoPrincipal(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	err := RequirePermission(testChecker(), "appointments.create")(okHandler)(c)
	if !apperr.IsUnauthenticated(err) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestRequire_CheckerError(t *testing.T) {
	checker := &fakeChecker{err: errors.New("db down")}
	p := &Principal{ID: uuid.New(), Role: RolePatient}
	err := Require(context.Background(), checker, p, "appointments.create")
	if err == nil || apperr.IsForbidden(err) {
		t.Fatalf("expected checker error to propagate, got %v", err)
	}
}
