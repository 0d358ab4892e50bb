// Package router wires middleware and routes onto an echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/mahalnishan/crm/internal/handler"
	"github.com/mahalnishan/crm/internal/middleware"
	"github.com/mahalnishan/crm/pkg/logger"
	"github.com/mahalnishan/crm/pkg/validation"
	"github.com/mahalnishan/crm/prometheus"
)

// New builds the echo app. metrics may be nil to leave /metrics unmounted.
func New(metrics http.Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()

	// Middleware
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(prometheus.MetricsMiddleware)
	e.Use(logger.Middleware())

	// Public routes that don't require authentication
	e.GET("/health", handler.HealthCheck)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}

	auth := e.Group("/auth")
	auth.POST("/register", handler.Register)
	auth.POST("/login", handler.Login)

	// API routes that require authentication and tenant context
	api := e.Group("/api")
	api.Use(middleware.AuthMiddleware)
	api.Use(middleware.RequireTenantContext)

	api.GET("/profile", handler.GetProfile)
	api.PATCH("/profile", handler.UpdateProfile)
	api.POST("/profile/change-password", handler.ChangePassword)
	api.GET("/settings", handler.GetSettings)
	api.PUT("/settings", handler.UpdateSettings)
	api.GET("/dashboard", handler.GetDashboard)

	clients := api.Group("/clients")
	clients.POST("", handler.CreateClient)
	clients.GET("", handler.ListClients)
	clients.GET("/:id", handler.GetClient)
	clients.GET("/:id/work-orders", handler.ListClientWorkOrders)
	clients.PUT("/:id", handler.UpdateClient)
	clients.DELETE("/:id", handler.DeleteClient)

	workers := api.Group("/workers")
	workers.POST("", handler.CreateWorker)
	workers.GET("", handler.ListWorkers)
	workers.GET("/:id", handler.GetWorker)
	workers.GET("/:id/work-orders", handler.ListWorkerWorkOrders)
	workers.PUT("/:id", handler.UpdateWorker)
	workers.DELETE("/:id", handler.DeleteWorker)

	services := api.Group("/services")
	services.POST("", handler.CreateService)
	services.GET("", handler.ListServices)
	services.GET("/:id", handler.GetService)
	services.GET("/:id/work-orders", handler.ListServiceWorkOrders)
	services.PUT("/:id", handler.UpdateService)
	services.DELETE("/:id", handler.DeleteService)

	orders := api.Group("/work-orders")
	orders.POST("", handler.CreateWorkOrder)
	orders.GET("", handler.ListWorkOrders)
	orders.GET("/export", handler.ExportWorkOrders)
	orders.GET("/:id", handler.GetWorkOrder)
	orders.PUT("/:id", handler.UpdateWorkOrder)
	orders.DELETE("/:id", handler.DeleteWorkOrder)

	return e
}
