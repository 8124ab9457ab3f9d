package healthrecord

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
	body := `{"patient_id":"` + env.patient.ID.String() + `","title":"Intake","weight_kg":70.5,"blood_pressure_systolic":120}`

	rec := serveAs(env, env.patient, http.MethodPost, "/api/health-records", body)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for patient, got %d", rec.Code)
	}

	rec = serveAs(env, env.physician, http.MethodPost, "/api/health-records", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var h Record
	if err := json.Unmarshal(rec.Body.Bytes(), &h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.WeightKG == nil || *h.WeightKG != 70.5 || h.BPSystolic == nil || *h.BPSystolic != 120 {
		t.Errorf("expected vitals to round-trip, got %+v", h.Vitals)
	}

	rec = serveAs(env, env.therapist, http.MethodPost, "/api/health-records", body)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for unassigned therapist, got %d", rec.Code)
	}
}

func TestHandler_ListAndGet(t *testing.T) {
	env := newTestEnv()
	h := env.record(t, env.physician)

	rec := serveAs(env, env.physician, http.MethodGet, "/api/health-records?patient_id="+env.patient.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var page struct {
		Data  []*Record `json:"data"`
		Total int       `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if page.Total != 1 || page.Data[0].ID != h.ID {
		t.Errorf("unexpected page: %+v", page)
	}

	rec = serveAs(env, env.physician, http.MethodGet, "/api/health-records?patient_id=bad", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}

	rec = serveAs(env, env.patient, http.MethodGet, "/api/health-records/"+h.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected patient to read own record, got %d", rec.Code)
	}

	rec = serveAs(env, env.therapist, http.MethodGet, "/api/health-records/"+h.ID.String(), "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for unassigned therapist, got %d", rec.Code)
	}
}

func TestHandler_UpdateDelete(t *testing.T) {
	env := newTestEnv()
	h := env.record(t, env.physician)
	target := "/api/health-records/" + h.ID.String()

	rec := serveAs(env, env.patient, http.MethodPut, target, `{"title":"mine"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for patient update, got %d", rec.Code)
	}

	rec = serveAs(env, env.physician, http.MethodPut, target, `{"treatment_plan":"CBT weekly"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serveAs(env, env.physician, http.MethodDelete, target, "")
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403 for physician delete, got %d", rec.Code)
	}

	rec = serveAs(env, env.admin, http.MethodDelete, target, "")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for admin delete, got %d", rec.Code)
	}
}
