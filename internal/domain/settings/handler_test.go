package settings

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

func TestHandler_CreateRequiresManage(t *testing.T) {
	env := newTestEnv()
	body := `{"setting_key":"feature.x","setting_value":"1","setting_type":"integer"}`

	rec := serveAs(env, env.patient, http.MethodPost, "/api/settings", body)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
	rec = serveAs(env, env.admin, http.MethodPost, "/api/settings", body)
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestHandler_CategoriesRoute(t *testing.T) {
	env := newTestEnv()
	env.init(t)

	rec := serveAs(env, env.admin, http.MethodGet, "/api/settings/categories", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var cats []Category
	json.Unmarshal(rec.Body.Bytes(), &cats)
	if len(cats) != 6 {
		t.Errorf("expected 6 categories, got %d", len(cats))
	}
}

func TestHandler_NonEditableIsForbidden(t *testing.T) {
	env := newTestEnv()
	env.init(t)

	rec := serveAs(env, env.admin, http.MethodPut, "/api/settings/app.version", `{"setting_value":"2.0.0"}`)
	if rec.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", rec.Code)
	}
}
