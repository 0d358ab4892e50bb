package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mahalnishan/crm/internal/model"
	"github.com/mahalnishan/crm/pkg/database"
	"github.com/mahalnishan/crm/pkg/logger"
	"github.com/mahalnishan/crm/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ServiceRequest defines the structure for catalog service creation/update requests
type ServiceRequest struct {
	Name        string          `json:"name" validate:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
}

func (r *ServiceRequest) check() error {
	if !r.Price.IsPositive() {
		return httpError(http.StatusBadRequest, "price must be greater than 0")
	}
	return nil
}

// CreateService adds a service to the tenant's catalog
func CreateService(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("service", "create")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	var req ServiceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := req.check(); err != nil {
		return err
	}

	service := model.Service{
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price.Round(2),
	}

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := database.GetDB().Create(&service).Error; err != nil {
		log.Error("Failed to create service", zap.String("name", req.Name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create service"})
	}

	log.Info("Service created successfully", zap.String("service_id", service.ID), zap.String("price", service.Price.StringFixed(2)))
	return c.JSON(http.StatusCreated, service)
}

// GetService retrieves a catalog service by ID
func GetService(c echo.Context) error {
	prometheus.RecordOperation("service", "get")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	service, err := findService(c, tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, service)
}

// ListServices lists catalog services ordered by name. Filter: search.
func ListServices(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("service", "list")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	p := pagination(c)
	query := database.GetDB().Model(&model.Service{}).Where("tenant_id = ?", tenantID)
	if search := c.QueryParam("search"); search != "" {
		pattern := contains(search)
		query = query.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'`, pattern, pattern)
	}
	query = query.Session(&gorm.Session{})

	defer prometheus.TrackDBOperation("query")(time.Now())

	var total int64
	if err := query.Count(&total).Error; err != nil {
		log.Error("Failed to count services", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve services"})
	}

	var services []model.Service
	if err := query.Order("name asc").Limit(p.Limit).Offset(p.Offset).Find(&services).Error; err != nil {
		log.Error("Failed to retrieve services", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve services"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"services":   services,
		"pagination": p.meta(total),
	})
}

// UpdateService edits a catalog entry. Lines already saved on work orders keep
// the price captured when they were saved.
func UpdateService(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("service", "update")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	var req ServiceRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := req.check(); err != nil {
		return err
	}

	service, err := findService(c, tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	service.Name = req.Name
	service.Description = req.Description
	service.Price = req.Price.Round(2)

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := database.GetDB().Save(service).Error; err != nil {
		log.Error("Failed to update service", zap.String("service_id", service.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update service"})
	}

	return c.JSON(http.StatusOK, service)
}

// DeleteService soft-deletes a catalog entry
func DeleteService(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("service", "delete")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	service, err := findService(c, tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	if err := database.GetDB().Delete(service).Error; err != nil {
		log.Error("Failed to delete service", zap.String("service_id", service.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete service"})
	}

	log.Info("Service deleted successfully", zap.String("service_id", service.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "Service deleted successfully"})
}

// ListServiceWorkOrders lists the work orders that use a service
func ListServiceWorkOrders(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("service", "work_orders")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	service, err := findService(c, tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	db := database.GetDB()
	var orders []model.WorkOrder
	if err := db.
		Preload("Client", unscopedPreload).
		Preload("Worker", unscopedPreload).
		Where("tenant_id = ? AND id IN (?)", tenantID,
			db.Model(&model.WorkOrderLine{}).Select("work_order_id").Where("service_id = ?", service.ID)).
		Order("created_at desc").
		Find(&orders).Error; err != nil {
		log.Error("Failed to retrieve service work orders", zap.String("service_id", service.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve work orders"})
	}

	open, completed := countByState(orders)
	return c.JSON(http.StatusOK, echo.Map{
		"service":     service,
		"work_orders": orders,
		"open":        open,
		"completed":   completed,
	})
}

func findService(c echo.Context, tenantID uint, id string) (*model.Service, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var service model.Service
	err := database.GetDB().Where("id = ? AND tenant_id = ?", id, tenantID).First(&service).Error
	if err == nil {
		return &service, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.FromContext(c).Warn("Service not found", zap.String("service_id", id))
		return nil, httpError(http.StatusNotFound, "Service not found")
	}
	logger.FromContext(c).Error("Failed to load service", zap.String("service_id", id), zap.Error(err))
	return nil, httpError(http.StatusInternalServerError, "Failed to load service")
}
