package security

import (
	"net/http"
	"strconv"
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
	view := auth.RequirePermission(h.checker, rbac.PermSecurityView)
	manage := auth.RequirePermission(h.checker, rbac.PermSecurityManage)

	g := api.Group("/security")
	g.GET("/dashboard", h.Dashboard, view)
	g.GET("/events", h.Events, view)
	g.POST("/events", h.CreateEvent, manage)
	g.GET("/login-attempts", h.LoginAttempts, view)
	g.GET("/audit-logs", h.AuditLogs, view)
	g.GET("/alerts", h.Alerts, view)
	g.POST("/alerts", h.CreateAlert, manage)
	g.PATCH("/alerts/:id/resolve", h.ResolveAlert, manage)
}

// since converts ?days= into a lower time bound; absent means unbounded.
func (h *Handler) since(c echo.Context) time.Time {
	days, err := strconv.Atoi(c.QueryParam("days"))
	if err != nil || days <= 0 {
		return time.Time{}
	}
	start, _ := h.svc.Window(days)
	return start
}

func boolParam(c echo.Context, name string) (*bool, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, apperr.Validation("invalid %s: %s", name, v)
	}
	return &b, nil
}

func uuidParam(c echo.Context, name string) (*uuid.UUID, error) {
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

func (h *Handler) Dashboard(c echo.Context) error {
	days, _ := strconv.Atoi(c.QueryParam("days"))
	d, err := h.svc.Dashboard(c.Request().Context(), days)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Events(c echo.Context) error {
	userID, err := uuidParam(c, "user_id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := EventFilter{
		EventType: c.QueryParam("event_type"),
		RiskLevel: c.QueryParam("risk_level"),
		UserID:    userID,
		Since:     h.since(c),
	}
	items, total, err := h.svc.Events(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) CreateEvent(c echo.Context) error {
	var req EventRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	e, err := h.svc.CreateEvent(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) LoginAttempts(c echo.Context) error {
	success, err := boolParam(c, "success")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := LoginFilter{
		Username:  c.QueryParam("username"),
		IPAddress: c.QueryParam("ip_address"),
		Success:   success,
		Since:     h.since(c),
	}
	items, total, err := h.svc.LoginAttempts(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) AuditLogs(c echo.Context) error {
	userID, err := uuidParam(c, "user_id")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := AuditFilter{
		UserID:       userID,
		Action:       c.QueryParam("action"),
		ResourceType: c.QueryParam("resource_type"),
		Since:        h.since(c),
	}
	items, total, err := h.svc.AuditLogs(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Alerts(c echo.Context) error {
	resolved, err := boolParam(c, "resolved")
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	f := AlertFilter{Resolved: resolved, Severity: c.QueryParam("severity")}
	items, total, err := h.svc.Alerts(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) CreateAlert(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req AlertRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.CreateAlert(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) ResolveAlert(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	var req ResolveRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.ResolveAlert(c.Request().Context(), p, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}
