package careteam

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
	g := api.Group("/patients")
	g.GET("", h.List, auth.RequireModule(h.checker, "patients"))
	g.POST("/:id/assign", h.Assign, auth.RequirePermission(h.checker, rbac.PermPatientsAssign))
	g.PATCH("/:id/assignments/:provider_id", h.UpdateStatus, auth.RequirePermission(h.checker, rbac.PermPatientsManage))
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

func (h *Handler) List(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Patients(c.Request().Context(), p, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Assign(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	patientID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	var req AssignRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.Assign(c.Request().Context(), p, patientID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":    "Patient assigned successfully",
		"assignment": a,
	})
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	patientID, err := uuidParam(c, "id")
	if err != nil {
		return err
	}
	providerID, err := uuidParam(c, "provider_id")
	if err != nil {
		return err
	}
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	a, err := h.svc.UpdateStatus(c.Request().Context(), p, patientID, providerID, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, a)
}
