package middleware

// identity.go holds the accessors for what JWTAuth stored in the context.

import "github.com/labstack/echo/v4"

// UserID returns the authenticated user id, or false for anonymous requests.
func UserID(c echo.Context) (string, bool) {
	v, ok := c.Get(ctxUserID).(string)
	return v, ok && v != ""
}

// Role returns the role claim of the authenticated user.
func Role(c echo.Context) string {
	v, _ := c.Get(ctxRole).(string)
	return v
}

// subjectOrAnon is used for rate limit keys.
func subjectOrAnon(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return id
	}
	return "anon"
}
