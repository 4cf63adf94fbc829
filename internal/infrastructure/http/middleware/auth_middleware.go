package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-sync/pkg/jwt"
)

// ContextKey is the echo context key for the authenticated operator
const ContextKey = "admin"

// EchoAdminAuth returns an Echo middleware that validates the Bearer token
// and stores the claims under ContextKey
func EchoAdminAuth(manager *jwt.Manager, logger *zap.Logger) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractToken(c.Request())
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization token")
			}

			claims, err := manager.ValidateAdmin(token)
			if err != nil {
				if errors.Is(err, jwt.ErrForbiddenRole) {
					return echo.NewHTTPError(http.StatusForbidden, "Insufficient permissions")
				}
				logger.Warn("⚠️ Rejected admin token",
					zap.String("path", c.Request().URL.Path),
					zap.Error(err),
				)
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(ContextKey, claims)
			return next(c)
		}
	}
}

// ClaimsFrom returns the operator claims set by EchoAdminAuth
func ClaimsFrom(c echo.Context) (*jwt.Claims, bool) {
	claims, ok := c.Get(ContextKey).(*jwt.Claims)
	return claims, ok
}

func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		// Expected format: "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}
