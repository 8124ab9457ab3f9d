package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths lists route paths that bypass bearer authentication: health
// checks plus the registration and token endpoints.
var publicPaths = map[string]bool{
	"/health":             true,
	"/health/db":          true,
	"/api/users/register": true,
	"/api/token":          true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether path is reachable without a bearer token.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
