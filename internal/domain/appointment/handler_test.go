package appointment

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
)

func serveAs(env *testEnv, p *auth.Principal, method, target, body string) *httptest.ResponseRecorder {
	e := echo.New()
	e.HTTPErrorHandler = apperr.HTTPErrorHandler(zerolog.Nop())
	api := e.Group("/api", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(c.Request().WithContext(auth.WithPrincipal(c.Request().Context(), p)))
			return next(c)
		}
	})
	NewHandler(env.svc, env.fx.Resolver).RegisterRoutes(api)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Create(t *testing.T) {
	env := newTestEnv()
	body := `{"provider_id":"` + env.therapist.ID.String() + `","scheduled_at":"2026-03-02T15:00:00Z","notes":"first visit"}`

	rec := serveAs(env, env.patient, http.MethodPost, "/api/appointments", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var a Appointment
	json.Unmarshal(rec.Body.Bytes(), &a)
	if a.Notes != "first visit" || a.Status != StatusScheduled {
		t.Errorf("unexpected appointment: %+v", a)
	}
}

func TestHandler_ProviderCannotBook(t *testing.T) {
	env := newTestEnv()
	body := `{"provider_id":"` + env.therapist.ID.String() + `","scheduled_at":"2026-03-02T15:00:00Z"}`

	rec := serveAs(env, env.therapist, http.MethodPost, "/api/appointments", body)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}

func TestHandler_ListAllRequiresViewAll(t *testing.T) {
	env := newTestEnv()
	env.book(t)

	rec := serveAs(env, env.patient, http.MethodGet, "/api/appointments", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for patient, got %d", rec.Code)
	}

	rec = serveAs(env, env.patient, http.MethodGet, "/api/appointments/my", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for own list, got %d", rec.Code)
	}
	var page struct{ Total int }
	json.Unmarshal(rec.Body.Bytes(), &page)
	if page.Total != 1 {
		t.Errorf("expected 1 appointment, got %d", page.Total)
	}
}

func TestHandler_GetOtherPatientForbidden(t *testing.T) {
	env := newTestEnv()
	a := env.book(t)
	stranger := env.repo.addParty(auth.RolePatient)

	rec := serveAs(env, stranger, http.MethodGet, "/api/appointments/"+a.ID.String(), "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	rec = serveAs(env, env.patient, http.MethodGet, "/api/appointments/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHandler_CancelAndStatus(t *testing.T) {
	env := newTestEnv()
	a := env.book(t)

	rec := serveAs(env, env.therapist, http.MethodPatch, "/api/appointments/"+a.ID.String()+"/status", `{"status":"completed"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serveAs(env, env.patient, http.MethodDelete, "/api/appointments/"+a.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if env.repo.stored(a.ID).Status != StatusCancelled {
		t.Error("expected cancelled status")
	}
}

func TestHandler_Directory(t *testing.T) {
	env := newTestEnv()
	env.repo.addParty(auth.RolePhysician)

	rec := serveAs(env, env.patient, http.MethodGet, "/api/providers", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out []Party
	json.Unmarshal(rec.Body.Bytes(), &out)
	if len(out) != 2 {
		t.Errorf("expected 2 providers, got %d", len(out))
	}

	rec = serveAs(env, env.repo.addParty(auth.RolePartner), http.MethodGet, "/api/therapists", "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for partner, got %d", rec.Code)
	}
}

func TestHandler_AvailabilityBadInput(t *testing.T) {
	env := newTestEnv()
	rec := serveAs(env, env.patient, http.MethodGet, "/api/calendar/availability?start=tomorrow&end=later", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
	rec = serveAs(env, env.patient, http.MethodGet,
		"/api/calendar/availability?start=2026-03-02T09:00:00Z&end=2026-03-02T10:00:00Z", "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}
