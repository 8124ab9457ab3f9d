package earnings

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
	viewAll := auth.RequirePermission(h.checker, rbac.PermEarningsViewAll)
	manage := auth.RequirePermission(h.checker, rbac.PermEarningsManage)
	commissionView := auth.RequirePermission(h.checker, rbac.PermCommissionView)
	commissionManage := auth.RequirePermission(h.checker, rbac.PermCommissionManage)

	api.GET("/earnings", h.List, auth.RequireModule(h.checker, "earnings"))
	api.POST("/earnings", h.Record, auth.RequirePermission(h.checker, rbac.PermEarningsCreate))
	api.PATCH("/earnings/:id/status", h.UpdateStatus, manage)
	api.GET("/commission-summary", h.Summary, auth.RequireAnyPermission(h.checker, rbac.PermEarningsViewOwn, rbac.PermEarningsViewAll))

	admin := api.Group("/admin")
	admin.GET("/commission-structures", h.Structures, commissionView)
	admin.POST("/commission-structures", h.CreateStructure, commissionManage)
	admin.PUT("/commission-structures/:id", h.UpdateStructure, commissionManage)
	admin.DELETE("/commission-structures/:id", h.DeleteStructure, commissionManage)
	admin.GET("/earnings-overview", h.Overview, viewAll)
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
	f := Filter{PaymentStatus: c.QueryParam("payment_status")}
	if v := c.QueryParam("provider_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return apperr.Validation("invalid provider_id")
		}
		f.ProviderID = &id
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.List(c.Request().Context(), p, f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Record(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req RecordRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	e, err := h.svc.Record(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	e, err := h.svc.UpdateStatus(c.Request().Context(), p, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, e)
}

func (h *Handler) Summary(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.Summary(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sum)
}

func (h *Handler) Overview(c echo.Context) error {
	o, err := h.svc.Overview(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, o)
}

func (h *Handler) Structures(c echo.Context) error {
	items, err := h.svc.Structures(c.Request().Context(), c.QueryParam("active") == "true")
	if err != nil {
		return err
	}
	if items == nil {
		items = []*CommissionStructure{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"commission_structures": items})
}

func (h *Handler) CreateStructure(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req StructureRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	cs, err := h.svc.CreateStructure(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cs)
}

func (h *Handler) UpdateStructure(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req StructureUpdate
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	cs, err := h.svc.UpdateStructure(c.Request().Context(), p, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cs)
}

func (h *Handler) DeleteStructure(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteStructure(c.Request().Context(), p, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Commission structure deleted successfully"})
}
