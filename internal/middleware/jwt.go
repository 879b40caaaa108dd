package middleware // reusable HTTP middleware for the ledger API

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-ledger/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the caller's id and role into the request context.  The
// secret must match the one used when issuing tokens.  Protected routes
// read the caller back with UserID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header is "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			// ParseAccessToken rejects non-HMAC algorithms, expired tokens
			// and unknown roles alike.
			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}
			SetIdentity(c, claims.UserID, claims.Role)
			return next(c)
		}
	}
}
