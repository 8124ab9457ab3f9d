package identity

import (
	"net/http"
	"strconv"

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

// RegisterRoutes mounts the user endpoints. loginLimit guards the token
// endpoint and may be nil.
func (h *Handler) RegisterRoutes(api *echo.Group, loginLimit echo.MiddlewareFunc) {
	var tokenMW []echo.MiddlewareFunc
	if loginLimit != nil {
		tokenMW = append(tokenMW, loginLimit)
	}
	api.POST("/users/register", h.Register)
	api.POST("/token", h.Token, tokenMW...)

	api.GET("/users/me", h.Me)
	api.GET("/users/me/permissions", h.MyPermissions)
	api.GET("/users/me/modules", h.MyModules)

	api.GET("/users", h.List, auth.RequirePermission(h.checker, rbac.PermUsersView))
	api.GET("/users/:id", h.Get)
	api.PATCH("/users/:id/role", h.UpdateRole, auth.RequirePermission(h.checker, rbac.PermUsersManageRoles))
	api.PATCH("/users/:id/status", h.UpdateStatus, auth.RequirePermission(h.checker, rbac.PermUsersManage))
	api.DELETE("/users/:id", h.Delete, auth.RequirePermission(h.checker, rbac.PermUsersManage))
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid %s", name)
	}
	return id, nil
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	u, err := h.svc.Register(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) Token(c echo.Context) error {
	var req TokenRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	tok, err := h.svc.Login(c.Request().Context(), req, c.RealIP(), c.Request().UserAgent())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tok)
}

func (h *Handler) Me(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	u, err := h.svc.Me(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) MyPermissions(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Permissions(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) MyModules(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Modules(c.Request().Context(), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{Search: c.QueryParam("q")}
	if r := c.QueryParam("role"); r != "" {
		role, err := auth.ParseRole(r)
		if err != nil {
			return apperr.Validation("invalid role: %s", r)
		}
		f.Role = role
	}
	if v := c.QueryParam("is_active"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apperr.Validation("is_active must be a boolean")
		}
		f.IsActive = &b
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
	u, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) UpdateRole(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req RoleUpdate
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	out, err := h.svc.UpdateRole(c.Request().Context(), p, id, req.Role)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
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
	var req StatusUpdate
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	u, err := h.svc.UpdateStatus(c.Request().Context(), p, id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) Delete(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.Delete(c.Request().Context(), p, id); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "User deleted successfully"})
}
