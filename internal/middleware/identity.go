package middleware

// identity.go holds the context keys JWTAuth fills in and the accessors
// handlers and the other middleware use to read them back.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/fleet-ledger/internal/model"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// UserID returns the authenticated user's id, or false when the request
// did not pass through JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(ctxUserID).(uint64)
	return id, ok && id != 0
}

// Role returns the authenticated role, empty for anonymous requests.
func Role(c echo.Context) model.Role {
	r, _ := c.Get(ctxRole).(model.Role)
	return r
}

// SetIdentity stores the caller on the context.  Tests use it to skip
// token handling.
func SetIdentity(c echo.Context, userID uint64, role model.Role) {
	c.Set(ctxUserID, userID)
	c.Set(ctxRole, role)
}

// userKey renders the caller for rate-limit and cache keys.  Anonymous
// callers share "anon".
func userKey(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
