package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mahalnishan/crm/internal/model"
	"github.com/mahalnishan/crm/pkg/database"
	"github.com/mahalnishan/crm/pkg/logger"
	"github.com/mahalnishan/crm/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DashboardStats is the summary shown on the landing page
type DashboardStats struct {
	TotalWorkOrders     int64             `json:"total_work_orders"`
	PendingWorkOrders   int64             `json:"pending_work_orders"`
	CompletedWorkOrders int64             `json:"completed_work_orders"`
	TotalClients        int64             `json:"total_clients"`
	ActiveClients       int64             `json:"active_clients"`
	TotalServices       int64             `json:"total_services"`
	TotalWorkers        int64             `json:"total_workers"`
	ActiveWorkers       int64             `json:"active_workers"`
	RecentWorkOrders    []model.WorkOrder `json:"recent_work_orders"`
}

// GetDashboard returns record counts and the five most recent work orders
func GetDashboard(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("dashboard", "get")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	defer prometheus.TrackDBOperation("dashboard")(time.Now())

	db := database.GetDB()
	scoped := func(m interface{}) *gorm.DB {
		return db.Model(m).Where("tenant_id = ?", tenantID)
	}

	var stats DashboardStats
	counts := []struct {
		query *gorm.DB
		dest  *int64
	}{
		{scoped(&model.WorkOrder{}), &stats.TotalWorkOrders},
		{scoped(&model.WorkOrder{}).Where("status = ?", model.OrderPending), &stats.PendingWorkOrders},
		{scoped(&model.WorkOrder{}).Where("status = ?", model.OrderCompleted), &stats.CompletedWorkOrders},
		{scoped(&model.Client{}), &stats.TotalClients},
		{scoped(&model.Client{}).Where("status = ?", model.StatusActive), &stats.ActiveClients},
		{scoped(&model.Service{}), &stats.TotalServices},
		{scoped(&model.Worker{}), &stats.TotalWorkers},
		{scoped(&model.Worker{}).Where("status = ?", model.StatusActive), &stats.ActiveWorkers},
	}
	for _, q := range counts {
		if err := q.query.Count(q.dest).Error; err != nil {
			log.Error("Failed to compute dashboard counts", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load dashboard"})
		}
	}

	if err := db.
		Preload("Client", unscopedPreload).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc").
		Limit(5).
		Find(&stats.RecentWorkOrders).Error; err != nil {
		log.Error("Failed to load recent work orders", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load dashboard"})
	}

	return c.JSON(http.StatusOK, stats)
}
