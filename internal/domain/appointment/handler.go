package appointment

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mindlab/health/internal/domain/rbac"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
	"github.com/mindlab/health/pkg/pagination"
)

type Handler struct {
	svc     *Service
	checker auth.PermissionChecker
}

func NewHandler(svc *Service, checker auth.PermissionChecker) *Handler {
	return &Handler{svc: svc, checker: checker}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	perm := func(p string) echo.MiddlewareFunc { return auth.RequirePermission(h.checker, p) }
	module := auth.RequireModule(h.checker, "appointments")

	api.POST("/appointments", h.Create, perm(rbac.PermAppointmentsCreate))
	api.GET("/appointments/my", h.Mine, perm(rbac.PermAppointmentsViewOwn))
	api.GET("/appointments", h.List, perm(rbac.PermAppointmentsViewAll))
	api.GET("/appointments/:id", h.Get,
		auth.RequireAnyPermission(h.checker, rbac.PermAppointmentsViewOwn, rbac.PermAppointmentsViewAll))
	api.PUT("/appointments/:id", h.Update, perm(rbac.PermAppointmentsUpdate))
	api.PATCH("/appointments/:id/status", h.UpdateStatus, perm(rbac.PermAppointmentsUpdate))
	api.DELETE("/appointments/:id", h.Cancel, perm(rbac.PermAppointmentsCancel))

	api.GET("/therapists", h.Therapists, module)
	api.GET("/providers", h.Providers, module)
	api.GET("/calendar/availability", h.Availability, module)
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

func (h *Handler) Create(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.Create(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Mine(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Mine(c.Request().Context(), p, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func optionalUUID(c echo.Context, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, apperr.Validation("invalid %s", name)
	}
	return &id, nil
}

func optionalTime(c echo.Context, name string) (*time.Time, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, apperr.Validation("%s must be an RFC 3339 timestamp", name)
	}
	return &t, nil
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Status: c.QueryParam("status")}
	var err error
	if f.ProviderID, err = optionalUUID(c, "provider_id"); err != nil {
		return err
	}
	if f.PatientID, err = optionalUUID(c, "patient_id"); err != nil {
		return err
	}
	if f.From, err = optionalTime(c, "from"); err != nil {
		return err
	}
	if f.To, err = optionalTime(c, "to"); err != nil {
		return err
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Get(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Update(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.Update(c.Request().Context(), p, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), p, id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) Cancel(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.svc.Cancel(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":     "Appointment cancelled successfully",
		"appointment": a,
	})
}

func (h *Handler) Therapists(c echo.Context) error {
	out, err := h.svc.Therapists(c.Request().Context())
	if err != nil {
		return err
	}
	if out == nil {
		out = []*Party{}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Providers(c echo.Context) error {
	out, err := h.svc.Providers(c.Request().Context())
	if err != nil {
		return err
	}
	if out == nil {
		out = []*Party{}
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) Availability(c echo.Context) error {
	start, err := time.Parse(time.RFC3339, c.QueryParam("start"))
	if err != nil {
		return apperr.Validation("start must be an RFC 3339 timestamp")
	}
	end, err := time.Parse(time.RFC3339, c.QueryParam("end"))
	if err != nil {
		return apperr.Validation("end must be an RFC 3339 timestamp")
	}
	av, err := h.svc.Availability(c.Request().Context(), start, end)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, av)
}
