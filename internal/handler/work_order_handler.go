package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mahalnishan/crm/internal/export"
	"github.com/mahalnishan/crm/internal/model"
	"github.com/mahalnishan/crm/internal/workorder"
	"github.com/mahalnishan/crm/pkg/database"
	"github.com/mahalnishan/crm/pkg/logger"
	"github.com/mahalnishan/crm/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxExportRows = 10000

var reconciler *workorder.Reconciler

// InitWorkOrders sets the reconciler used by the work order handlers
func InitWorkOrders(r *workorder.Reconciler) {
	reconciler = r
}

// WorkOrderRequest is the body of work order create and update requests
type WorkOrderRequest struct {
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	ClientID      string                `json:"client_id"`
	WorkerID      *string               `json:"worker_id"`
	Status        string                `json:"status"`
	PaymentStatus string                `json:"payment_status"`
	ScheduledDate string                `json:"scheduled_date"`
	CompletedDate string                `json:"completed_date"`
	Version       *int                  `json:"version"`
	Lines         []workorder.LineInput `json:"lines"`
}

func (r *WorkOrderRequest) draft() (workorder.Draft, error) {
	scheduled, err := parseDate("scheduled_date", r.ScheduledDate)
	if err != nil {
		return workorder.Draft{}, err
	}
	completed, err := parseDate("completed_date", r.CompletedDate)
	if err != nil {
		return workorder.Draft{}, err
	}
	return workorder.Draft{
		Title:         r.Title,
		Description:   r.Description,
		ClientID:      r.ClientID,
		WorkerID:      r.WorkerID,
		Status:        model.OrderStatus(r.Status),
		PaymentStatus: model.PaymentStatus(r.PaymentStatus),
		ScheduledDate: scheduled,
		CompletedDate: completed,
		Version:       r.Version,
	}, nil
}

// CreateWorkOrder prices the requested lines and saves the order.
// Missing statuses fall back to the tenant's configured defaults.
func CreateWorkOrder(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	var req WorkOrderRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	draft, err := req.draft()
	if err != nil {
		return workOrderError(c, err)
	}
	if draft.Status == "" || draft.PaymentStatus == "" {
		applyTenantDefaults(c, tenantID, &draft)
	}

	order, err := reconciler.Create(c.Request().Context(), tenantID, draft, req.Lines)
	if err != nil {
		return workOrderError(c, err)
	}

	log.Info("Work order created successfully",
		zap.String("work_order_id", order.ID),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)),
		zap.Int("lines", len(order.Lines)))
	return c.JSON(http.StatusCreated, order)
}

// GetWorkOrder returns an order with its client, worker and lines
func GetWorkOrder(c echo.Context) error {
	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	prometheus.RecordOperation("work_order", "get")
	order, err := reconciler.Get(c.Request().Context(), tenantID, c.Param("id"))
	if err != nil {
		return workOrderError(c, err)
	}
	return c.JSON(http.StatusOK, order)
}

// UpdateWorkOrder replaces the order's fields and lines. Sending the version
// last read makes the update fail with 409 if someone else saved in between.
func UpdateWorkOrder(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	var req WorkOrderRequest
	if err := c.Bind(&req); err != nil {
		log.Warn("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request data"})
	}

	draft, err := req.draft()
	if err != nil {
		return workOrderError(c, err)
	}

	order, err := reconciler.Update(c.Request().Context(), tenantID, c.Param("id"), draft, req.Lines)
	if err != nil {
		return workOrderError(c, err)
	}

	log.Info("Work order updated successfully",
		zap.String("work_order_id", order.ID),
		zap.Int("version", order.Version),
		zap.String("total_amount", order.TotalAmount.StringFixed(2)))
	return c.JSON(http.StatusOK, order)
}

// DeleteWorkOrder deletes the order and its lines
func DeleteWorkOrder(c echo.Context) error {
	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	id := c.Param("id")
	if err := reconciler.Delete(c.Request().Context(), tenantID, id); err != nil {
		return workOrderError(c, err)
	}

	logger.FromContext(c).Info("Work order deleted successfully", zap.String("work_order_id", id))
	return c.JSON(http.StatusOK, echo.Map{"message": "Work order deleted successfully"})
}

// ListWorkOrders lists orders newest first. Filters: search (title or client
// name), status, payment_status, client_id, worker_id.
func ListWorkOrders(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("work_order", "list")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	p := pagination(c)
	query := workOrderQuery(c, tenantID)

	defer prometheus.TrackDBOperation("query")(time.Now())

	var total int64
	if err := query.Count(&total).Error; err != nil {
		log.Error("Failed to count work orders", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve work orders"})
	}

	var orders []model.WorkOrder
	if err := query.
		Preload("Client", unscopedPreload).
		Preload("Worker", unscopedPreload).
		Order("work_orders.created_at desc").
		Limit(p.Limit).
		Offset(p.Offset).
		Find(&orders).Error; err != nil {
		log.Error("Failed to retrieve work orders", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve work orders"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"work_orders": orders,
		"pagination":  p.meta(total),
	})
}

// ExportWorkOrders downloads the filtered orders and their lines as an XLSX workbook
func ExportWorkOrders(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("work_order", "export")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	defer prometheus.TrackDBOperation("export")(time.Now())

	var orders []model.WorkOrder
	if err := workOrderQuery(c, tenantID).
		Preload("Client", unscopedPreload).
		Preload("Worker", unscopedPreload).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.Service", unscopedPreload).
		Order("work_orders.created_at desc").
		Limit(maxExportRows).
		Find(&orders).Error; err != nil {
		log.Error("Failed to load work orders for export", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to export work orders"})
	}

	var buf bytes.Buffer
	if err := export.WorkOrders(&buf, orders); err != nil {
		log.Error("Failed to render work order export", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to export work orders"})
	}

	filename := fmt.Sprintf("work-orders-%s.xlsx", time.Now().Format("20060102"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))

	log.Info("Work orders exported", zap.Int("count", len(orders)))
	return c.Blob(http.StatusOK, export.ContentType, buf.Bytes())
}

func workOrderQuery(c echo.Context, tenantID uint) *gorm.DB {
	query := database.GetDB().Model(&model.WorkOrder{}).Where("work_orders.tenant_id = ?", tenantID)

	if search := c.QueryParam("search"); search != "" {
		pattern := contains(search)
		query = query.
			Joins("LEFT JOIN clients ON clients.id = work_orders.client_id").
			Where(`LOWER(work_orders.title) LIKE ? ESCAPE '\' OR LOWER(clients.name) LIKE ? ESCAPE '\'`, pattern, pattern)
	}
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("work_orders.status = ?", status)
	}
	if paymentStatus := c.QueryParam("payment_status"); paymentStatus != "" {
		query = query.Where("work_orders.payment_status = ?", paymentStatus)
	}
	if clientID := c.QueryParam("client_id"); clientID != "" {
		query = query.Where("work_orders.client_id = ?", clientID)
	}
	if workerID := c.QueryParam("worker_id"); workerID != "" {
		query = query.Where("work_orders.worker_id = ?", workerID)
	}
	return query.Session(&gorm.Session{})
}

func applyTenantDefaults(c echo.Context, tenantID uint, draft *workorder.Draft) {
	var tenant model.Tenant
	if err := database.GetDB().Select("default_order_status", "default_payment_status").First(&tenant, tenantID).Error; err != nil {
		logger.FromContext(c).Warn("Failed to load tenant defaults", zap.Uint("tenant_id", tenantID), zap.Error(err))
		return
	}
	if draft.Status == "" {
		draft.Status = tenant.DefaultOrderStatus
	}
	if draft.PaymentStatus == "" {
		draft.PaymentStatus = tenant.DefaultPaymentStatus
	}
}
