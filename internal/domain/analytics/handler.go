package analytics

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mindlab/health/internal/domain/rbac"
	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
)

type Handler struct {
	svc     *Service
	checker auth.PermissionChecker
}

func NewHandler(svc *Service, checker auth.PermissionChecker) *Handler {
	return &Handler{svc: svc, checker: checker}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	view := auth.RequirePermission(h.checker, rbac.PermAnalyticsView)
	viewAll := auth.RequirePermission(h.checker, rbac.PermAnalyticsViewAll)

	g := api.Group("/analytics")
	g.GET("/dashboard", h.Dashboard, view)
	g.GET("/users", h.Users, viewAll)
	g.GET("/appointments", h.Appointments, view)
	g.POST("/activity", h.RecordActivity, auth.RequirePermission(h.checker, rbac.PermAnalyticsRecord))
	g.GET("/activities", h.Activities, viewAll)
	g.GET("/system-metrics", h.Metrics, viewAll)
	g.POST("/system-metrics", h.RecordMetric, viewAll)
}

func intParam(c echo.Context, name string, def int) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return def
	}
	return v
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.svc.Dashboard(c.Request().Context(), intParam(c, "days", defaultDays))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) Users(c echo.Context) error {
	rep, err := h.svc.Users(c.Request().Context(), intParam(c, "days", defaultDays))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) Appointments(c echo.Context) error {
	rep, err := h.svc.Appointments(c.Request().Context(), intParam(c, "days", defaultDays))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

func (h *Handler) RecordActivity(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req ActivityRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.RecordActivity(c.Request().Context(), p, req, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) Activities(c echo.Context) error {
	items, err := h.svc.Activities(c.Request().Context(), intParam(c, "days", 7), intParam(c, "limit", 100))
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Activity{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Metrics(c echo.Context) error {
	items, err := h.svc.Metrics(c.Request().Context(), intParam(c, "days", defaultDays), c.QueryParam("category"))
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Metric{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) RecordMetric(c echo.Context) error {
	var req MetricRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	m, err := h.svc.RecordMetric(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}
