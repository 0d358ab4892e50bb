package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mahalnishan/crm/pkg/database"
	"github.com/mahalnishan/crm/pkg/logger"
	"go.uber.org/zap"
)

// ServiceName is reported by the health endpoint
var ServiceName = "crm-service"

// HealthCheck handles the health check endpoint. ?check=db also pings the database.
func HealthCheck(c echo.Context) error {
	if c.QueryParam("check") == "db" {
		if err := database.Ping(); err != nil {
			logger.FromContext(c).Error("Database health check failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"status":   "unhealthy",
				"service":  ServiceName,
				"database": "unreachable",
			})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"status":   "healthy",
			"service":  ServiceName,
			"database": "ok",
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"status":  "healthy",
		"service": ServiceName,
	})
}
