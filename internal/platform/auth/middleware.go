package auth

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mindlab/health/internal/platform/apperr"
)

// TokenResolver turns a bearer token into a principal. *Authenticator
// satisfies it.
type TokenResolver interface {
	ResolveToken(ctx context.Context, token string) (*Principal, error)
}

// BearerAuth requires a valid "Authorization: Bearer <token>" header on every
// request not matched by skipper, and stores the resolved principal in the
// request context. All failures produce the same Unauthenticated error.
func BearerAuth(resolver TokenResolver, skipper func(echo.Context) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if skipper != nil && skipper(c) {
				return next(c)
			}

			tokenStr, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok && isWebSocketUpgrade(c) {
				// Browsers cannot set headers on websocket handshakes.
				tokenStr = c.QueryParam("access_token")
				ok = tokenStr != ""
			}
			if !ok {
				return apperr.Unauthenticated(msgInvalidCredentials)
			}

			ctx := c.Request().Context()
			p, err := resolver.ResolveToken(ctx, tokenStr)
			if err != nil {
				return err
			}

			c.SetRequest(c.Request().WithContext(WithPrincipal(ctx, p)))
			c.Set("user_id", p.ID.String())
			c.Set("user_role", string(p.Role))
			return next(c)
		}
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	tok := strings.TrimSpace(parts[1])
	return tok, tok != ""
}

func isWebSocketUpgrade(c echo.Context) bool {
	return strings.EqualFold(c.Request().Header.Get(echo.HeaderUpgrade), "websocket")
}

// CurrentPrincipal returns the caller or an Unauthenticated error when the
// route was reached without BearerAuth.
func CurrentPrincipal(c echo.Context) (*Principal, error) {
	p := PrincipalFromContext(c.Request().Context())
	if p == nil {
		return nil, apperr.Unauthenticated(msgInvalidCredentials)
	}
	return p, nil
}
