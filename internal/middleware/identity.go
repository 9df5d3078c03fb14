package middleware

// identity.go holds helpers shared across middleware files. The rate
// limiter keys its buckets by the identity JWTAuth stored in context;
// unauthenticated traffic shares a single "guest" bucket.

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// userID extracts the authenticated user identifier from the context.
// It returns "guest" when no user is authenticated.
func userID(c echo.Context) string {
	switch v := c.Get("user_id").(type) {
	case float64:
		// JWT numeric claims decode as float64
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case string:
		if v != "" {
			return v
		}
	}
	return "guest"
}
