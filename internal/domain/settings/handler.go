package settings

import (
	"net/http"

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
	manage := auth.RequirePermission(h.checker, rbac.PermSettingsManage)

	g := api.Group("/settings")
	g.GET("", h.List)
	g.GET("/categories", h.Categories)
	g.GET("/:key", h.Get)
	g.POST("", h.Create, manage)
	g.PUT("/:key", h.Update, manage)
	g.DELETE("/:key", h.Delete, manage)
}

func (h *Handler) List(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), p, c.QueryParam("category"))
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Setting{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Categories(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	cats, err := h.svc.Categories(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cats)
}

func (h *Handler) Get(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	st, err := h.svc.Get(c.Request().Context(), p, c.Param("key"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
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
	st, err := h.svc.Create(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, st)
}

func (h *Handler) Update(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req UpdateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	st, err := h.svc.Update(c.Request().Context(), p, c.Param("key"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, st)
}

func (h *Handler) Delete(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	key := c.Param("key")
	if err := h.svc.Delete(c.Request().Context(), p, key); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Setting '" + key + "' deleted successfully"})
}
