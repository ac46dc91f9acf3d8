package middleware

// identity.go defines helper functions shared across middleware files.  The
// rate limiter key builder needs a stable per-user string without caring how
// JWTAuth stored the claim, so the lookup here normalizes the possible claim
// types to a string and falls back to "anon".

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID returns a string form of the authenticated user's ID from
// context, or "anon" for unauthenticated requests.
func currentUserID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return "anon"
}
