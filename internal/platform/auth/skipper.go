package auth

import (
	"github.com/labstack/echo/v4"
)

// publicPaths bypass authentication: infrastructure endpoints and the
// routes that hand out tokens.
var publicPaths = map[string]bool{
	"/health":             true,
	"/metrics":            true,
	"/api/v1/auth/login":  true,
	"/api/v1/auth/signup": true,
}

// AuthSkipper returns true for requests whose route should skip authentication.
func AuthSkipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// IsPublicPath reports whether the given path is a public endpoint.
func IsPublicPath(path string) bool {
	return publicPaths[path]
}
