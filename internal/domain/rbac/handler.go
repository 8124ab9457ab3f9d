package rbac

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/mindlab/health/internal/platform/apperr"
	"github.com/mindlab/health/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	checker := h.svc.Resolver()

	g := api.Group("/rbac")
	g.GET("/permissions", h.ListPermissions, auth.RequirePermission(checker, PermRBACView))
	g.GET("/roles/:role/permissions", h.RolePermissions, auth.RequirePermission(checker, PermRBACView))
	g.POST("/check-permission", h.CheckPermission)
}

func (h *Handler) ListPermissions(c echo.Context) error {
	perms, err := h.svc.ListPermissions(c.Request().Context())
	if err != nil {
		return err
	}
	if perms == nil {
		perms = []*Permission{}
	}
	return c.JSON(http.StatusOK, perms)
}

func (h *Handler) RolePermissions(c echo.Context) error {
	out, err := h.svc.RolePermissions(c.Request().Context(), c.Param("role"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) CheckPermission(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req CheckRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	out, err := h.svc.Check(c.Request().Context(), p, req.Permission)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
