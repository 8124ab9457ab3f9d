package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mindlab/health/internal/platform/apperr"
)

// PermissionChecker answers catalog questions about a principal. The rbac
// Resolver is the production implementation.
type PermissionChecker interface {
	HasPermission(ctx context.Context, p *Principal, permission string) (bool, error)
	CanAccessModule(ctx context.Context, p *Principal, module string) (bool, error)
}

// Require returns nil when p holds permission and a Forbidden error otherwise.
func Require(ctx context.Context, checker PermissionChecker, p *Principal, permission string) error {
	ok, err := checker.HasPermission(ctx, p, permission)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.Forbidden("permission required: %s", permission)
	}
	return nil
}

// RequirePermission returns middleware that admits callers holding permission.
func RequirePermission(checker PermissionChecker, permission string) echo.MiddlewareFunc {
	return RequireAnyPermission(checker, permission)
}

// RequireAnyPermission admits callers holding at least one of permissions.
func RequireAnyPermission(checker PermissionChecker, permissions ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := CurrentPrincipal(c)
			if err != nil {
				return err
			}
			ctx := c.Request().Context()
			for _, perm := range permissions {
				ok, err := checker.HasPermission(ctx, p, perm)
				if err != nil {
					return err
				}
				if ok {
					return next(c)
				}
			}
			return apperr.Forbidden("permission required: %s", strings.Join(permissions, " or "))
		}
	}
}

// RequireModule admits callers with any permission in module.
func RequireModule(checker PermissionChecker, module string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, err := CurrentPrincipal(c)
			if err != nil {
				return err
			}
			ok, err := checker.CanAccessModule(c.Request().Context(), p, module)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.Forbidden("access to module %s denied", module)
			}
			return next(c)
		}
	}
}
