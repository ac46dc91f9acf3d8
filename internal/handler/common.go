package handler // handler defines http handlers

import (
	"errors"  // errors provides sentinel values used by the context helpers
	"strconv" // strconv converts strings to numeric types

	"github.com/labstack/echo/v4" // echo defines request context types
)

// getUserID extracts the user_id claim from echo.Context and converts it to
// uint64.  JWTAuth stores claims without asserting types, so numeric claims
// usually arrive as float64.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// getHandle extracts the acting user's public handle from echo.Context.
// The handle is the identity recorded in occupant lists, so an empty value
// means the caller cannot reserve anything.
func getHandle(c echo.Context) (string, error) {
	if v, ok := c.Get("handle").(string); ok && v != "" {
		return v, nil
	}
	return "", errors.New("missing handle in context")
}
