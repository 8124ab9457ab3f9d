package messaging

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
	own := auth.RequirePermission(h.checker, rbac.PermMessagesViewOwn)

	g := api.Group("/messages")
	g.POST("", h.Send, auth.RequirePermission(h.checker, rbac.PermMessagesSend))
	g.GET("/inbox", h.Inbox, own)
	g.GET("/sent", h.Sent, own)
	g.GET("/all", h.All, auth.RequirePermission(h.checker, rbac.PermMessagesViewAll))
	g.GET("/:id", h.Get, auth.RequireAnyPermission(h.checker, rbac.PermMessagesViewOwn, rbac.PermMessagesViewAll))
	g.PATCH("/:id/read", h.MarkRead, own)
	g.DELETE("/:id", h.Delete, own)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}

func page(c echo.Context, items []*Message, total int, pg pagination.Params) error {
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg))
}

func (h *Handler) Send(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	var req SendRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	m, err := h.svc.Send(c.Request().Context(), p, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, m)
}

func (h *Handler) Inbox(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Inbox(c.Request().Context(), p, c.QueryParam("unread") == "true", pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return page(c, items, total, pg)
}

func (h *Handler) Sent(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.Sent(c.Request().Context(), p, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return page(c, items, total, pg)
}

func (h *Handler) All(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.All(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return page(c, items, total, pg)
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
	m, err := h.svc.Get(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
}

func (h *Handler) MarkRead(c echo.Context) error {
	p, err := auth.CurrentPrincipal(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}
	m, err := h.svc.MarkRead(c.Request().Context(), p, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, m)
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
	return c.JSON(http.StatusOK, map[string]string{"message": "Message deleted successfully"})
}
