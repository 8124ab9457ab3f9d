package healthrecord

import (
	"net/http"

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
	module := auth.RequireModule(h.checker, "health_records")

	g := api.Group("/health-records")
	g.GET("", h.List, module)
	g.POST("", h.Create, auth.RequirePermission(h.checker, rbac.PermHealthRecordsCreate))
	g.GET("/:id", h.Get, module)
	g.PUT("/:id", h.Update, auth.RequireAnyPermission(h.checker, rbac.PermHealthRecordsEditOwn, rbac.PermHealthRecordsEditAssigned))
	g.DELETE("/:id", h.Delete, auth.RequirePermission(h.checker, rbac.PermHealthRecordsDelete))
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	f := Filter{RecordType: c.QueryParam("record_type"), Status: c.QueryParam("status")}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.Validation("invalid patient_id")
		}
		f.PatientID = &id
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), p, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
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
	rec, err := h.svc.Create(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, rec)
}

func (h *Handler) Get(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	rec, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Update(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	rec, err := h.svc.Update(c.Request().Context(), p, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) Delete(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), p, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Health record deleted successfully"})
}
