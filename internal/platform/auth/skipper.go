package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths are route patterns served without credentials.
var publicPaths = map[string]bool{
	"/health":    true,
	"/health/db": true,
}

// AuthSkipper reports whether the matched route skips authentication.
func AuthSkipper(c echo.Context) bool {
	return IsPublicPath(c.Path())
}

// IsPublicPath reports whether the route pattern is served without credentials.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
