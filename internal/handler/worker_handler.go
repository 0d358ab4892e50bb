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
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// WorkerRequest defines the structure for worker creation/update requests
type WorkerRequest struct {
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"omitempty,email"`
	Phone  string `json:"phone"`
	Status string `json:"status" validate:"omitempty,oneof=Active Inactive"`
}

func (r *WorkerRequest) apply(worker *model.Worker) {
	worker.Name = r.Name
	worker.Email = r.Email
	worker.Phone = r.Phone
	worker.Status = model.ActiveStatus(r.Status)
	if worker.Status == "" {
		worker.Status = model.StatusActive
	}
}

// CreateWorker creates a new worker for the current tenant
func CreateWorker(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("worker", "create")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	var req WorkerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	worker := model.Worker{TenantID: tenantID}
	req.apply(&worker)

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := database.GetDB().Create(&worker).Error; err != nil {
		log.Error("Failed to create worker", zap.String("name", req.Name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create worker"})
	}

	log.Info("Worker created successfully", zap.String("worker_id", worker.ID))
	return c.JSON(http.StatusCreated, worker)
}

// GetWorker retrieves a worker by ID for the current tenant
func GetWorker(c echo.Context) error {
	prometheus.RecordOperation("worker", "get")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	worker, err := findWorker(c, tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, worker)
}

// ListWorkers lists workers ordered by name. Filters: search, status.
func ListWorkers(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("worker", "list")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	p := pagination(c)
	query := database.GetDB().Model(&model.Worker{}).Where("tenant_id = ?", tenantID)
	if search := c.QueryParam("search"); search != "" {
		pattern := contains(search)
		query = query.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\' OR phone LIKE ? ESCAPE '\'`, pattern, pattern, pattern)
	}
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	query = query.Session(&gorm.Session{})

	defer prometheus.TrackDBOperation("query")(time.Now())

	var total int64
	if err := query.Count(&total).Error; err != nil {
		log.Error("Failed to count workers", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve workers"})
	}

	var workers []model.Worker
	if err := query.Order("name asc").Limit(p.Limit).Offset(p.Offset).Find(&workers).Error; err != nil {
		log.Error("Failed to retrieve workers", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve workers"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"workers":    workers,
		"pagination": p.meta(total),
	})
}

// UpdateWorker updates an existing worker for the current tenant
func UpdateWorker(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("worker", "update")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	var req WorkerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	worker, err := findWorker(c, tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	req.apply(worker)

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := database.GetDB().Save(worker).Error; err != nil {
		log.Error("Failed to update worker", zap.String("worker_id", worker.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update worker"})
	}

	return c.JSON(http.StatusOK, worker)
}

// DeleteWorker soft-deletes a worker; orders assigned to it keep the assignment
func DeleteWorker(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("worker", "delete")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	worker, err := findWorker(c, tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	if err := database.GetDB().Delete(worker).Error; err != nil {
		log.Error("Failed to delete worker", zap.String("worker_id", worker.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete worker"})
	}

	log.Info("Worker deleted successfully", zap.String("worker_id", worker.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "Worker deleted successfully"})
}

// ListWorkerWorkOrders lists orders assigned to a worker with open and completed counts
func ListWorkerWorkOrders(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("worker", "work_orders")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	worker, err := findWorker(c, tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var orders []model.WorkOrder
	if err := database.GetDB().
		Preload("Client", unscopedPreload).
		Where("tenant_id = ? AND worker_id = ?", tenantID, worker.ID).
		Order("created_at desc").
		Find(&orders).Error; err != nil {
		log.Error("Failed to retrieve worker work orders", zap.String("worker_id", worker.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve work orders"})
	}

	open, completed := countByState(orders)
	return c.JSON(http.StatusOK, echo.Map{
		"worker":      worker,
		"work_orders": orders,
		"open":        open,
		"completed":   completed,
	})
}

func countByState(orders []model.WorkOrder) (open, completed int) {
	for _, o := range orders {
		switch {
		case o.Status.Open():
			open++
		case o.Status == model.OrderCompleted:
			completed++
		}
	}
	return open, completed
}

func findWorker(c echo.Context, tenantID uint, id string) (*model.Worker, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var worker model.Worker
	err := database.GetDB().Where("id = ? AND tenant_id = ?", id, tenantID).First(&worker).Error
	if err == nil {
		return &worker, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.FromContext(c).Warn("Worker not found", zap.String("worker_id", id))
		return nil, httpError(http.StatusNotFound, "Worker not found")
	}
	logger.FromContext(c).Error("Failed to load worker", zap.String("worker_id", id), zap.Error(err))
	return nil, httpError(http.StatusInternalServerError, "Failed to load worker")
}
