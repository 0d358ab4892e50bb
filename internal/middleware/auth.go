package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mahalnishan/crm/pkg/jwtutil"
	"github.com/mahalnishan/crm/pkg/logger"
	"github.com/mahalnishan/crm/prometheus"
	"go.uber.org/zap"
)

// AuthMiddleware verifies the JWT token and extracts claims
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		log := logger.FromContext(c)

		prometheus.AuthAttemptsCounter.Inc()

		tokenString := c.Request().Header.Get("Authorization")
		if tokenString == "" {
			log.Warn("Missing authorization token")
			prometheus.AuthErrorsCounter.Inc()
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
		}

		// Remove "Bearer " prefix if present
		if len(tokenString) > 7 && strings.ToUpper(tokenString[0:7]) == "BEARER " {
			tokenString = tokenString[7:]
		}

		claims, err := jwtutil.ValidateToken(tokenString)
		if err != nil {
			log.Warn("Invalid token", zap.Error(err))
			prometheus.AuthErrorsCounter.Inc()
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}

		prometheus.AuthSuccessCounter.Inc()

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)

		if claims.TenantID != 0 {
			c.Set("tenant_id", claims.TenantID)
			c.Set("tenant_name", claims.TenantName)
			c.Set("role", claims.Role)

			log = log.With(
				zap.Uint("tenant_id", claims.TenantID),
				zap.String("tenant_name", claims.TenantName),
				zap.String("role", claims.Role),
			)
		}

		log = log.With(
			zap.Uint("user_id", claims.UserID),
			zap.String("email", claims.Email),
		)
		logger.SetContextLogger(c, log)

		return next(c)
	}
}

// RequireTenantContext ensures the request has tenant context in the JWT
func RequireTenantContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := TenantID(c); !ok {
			logger.FromContext(c).Warn("Missing tenant context")
			prometheus.TenantContextMissingCounter.Inc()
			return c.JSON(http.StatusForbidden, echo.Map{
				"error":   "tenant context required",
				"message": "Please sign in to an organization before accessing this resource",
			})
		}
		return next(c)
	}
}

// TenantID returns the tenant id the auth middleware stored on the context
func TenantID(c echo.Context) (uint, bool) {
	tenantID, ok := c.Get("tenant_id").(uint)
	return tenantID, ok && tenantID != 0
}

// UserID returns the authenticated user's id
func UserID(c echo.Context) (uint, bool) {
	userID, ok := c.Get("user_id").(uint)
	return userID, ok && userID != 0
}
