package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/mahalnishan/crm/pkg/logger"
	"go.uber.org/zap"
)

// RequestIDMiddleware adds a unique request ID to each request.
// An incoming X-Request-ID header is reused so ids survive across services.
func RequestIDMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get(logger.RequestIDKey)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set("request_id", requestID)
		c.Response().Header().Set(logger.RequestIDKey, requestID)

		log := logger.FromContext(c).With(zap.String("request_id", requestID))
		logger.SetContextLogger(c, log)

		return next(c)
	}
}
