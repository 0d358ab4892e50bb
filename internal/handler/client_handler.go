package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mahalnishan/crm/internal/middleware"
	"github.com/mahalnishan/crm/internal/model"
	"github.com/mahalnishan/crm/pkg/database"
	"github.com/mahalnishan/crm/pkg/logger"
	"github.com/mahalnishan/crm/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ClientRequest defines the structure for client creation/update requests
type ClientRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	ClientType string `json:"client_type" validate:"omitempty,oneof=Individual Company Cash Contractor"`
	Status     string `json:"status" validate:"omitempty,oneof=Active Inactive"`
	Notes      string `json:"notes"`
}

func (r *ClientRequest) apply(client *model.Client) {
	client.Name = r.Name
	client.Email = r.Email
	client.Phone = r.Phone
	client.Address = r.Address
	client.Notes = r.Notes
	client.ClientType = model.ClientType(r.ClientType)
	if client.ClientType == "" {
		client.ClientType = model.ClientIndividual
	}
	client.Status = model.ActiveStatus(r.Status)
	if client.Status == "" {
		client.Status = model.StatusActive
	}
}

// CreateClient creates a new client for the current tenant
func CreateClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "create")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	var req ClientRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	userID, _ := middleware.UserID(c)
	client := model.Client{TenantID: tenantID, CreatedBy: userID}
	req.apply(&client)

	defer prometheus.TrackDBOperation("insert")(time.Now())

	if err := database.GetDB().Create(&client).Error; err != nil {
		log.Error("Failed to create client", zap.String("name", req.Name), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to create client"})
	}

	log.Info("Client created successfully", zap.String("client_id", client.ID), zap.String("name", client.Name))
	return c.JSON(http.StatusCreated, client)
}

// GetClient retrieves a client by ID for the current tenant
func GetClient(c echo.Context) error {
	prometheus.RecordOperation("client", "get")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	client, err := findClient(c, tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, client)
}

// ListClients lists clients ordered by name. Filters: search, status, client_type.
func ListClients(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "list")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	p := pagination(c)
	query := database.GetDB().Model(&model.Client{}).Where("tenant_id = ?", tenantID)

	if search := c.QueryParam("search"); search != "" {
		pattern := contains(search)
		query = query.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\' OR phone LIKE ? ESCAPE '\'`, pattern, pattern, pattern)
	}
	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if clientType := c.QueryParam("client_type"); clientType != "" {
		query = query.Where("client_type = ?", clientType)
	}
	query = query.Session(&gorm.Session{})

	defer prometheus.TrackDBOperation("query")(time.Now())

	var total int64
	if err := query.Count(&total).Error; err != nil {
		log.Error("Failed to count clients", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve clients"})
	}

	var clients []model.Client
	if err := query.Order("name asc").Limit(p.Limit).Offset(p.Offset).Find(&clients).Error; err != nil {
		log.Error("Failed to retrieve clients", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve clients"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"clients":    clients,
		"pagination": p.meta(total),
	})
}

// UpdateClient updates an existing client for the current tenant
func UpdateClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "update")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	var req ClientRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	client, err := findClient(c, tenantID, c.Param("id"))
	if err != nil {
		return err
	}
	req.apply(client)

	defer prometheus.TrackDBOperation("update")(time.Now())

	if err := database.GetDB().Save(client).Error; err != nil {
		log.Error("Failed to update client", zap.String("client_id", client.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update client"})
	}

	log.Info("Client updated successfully", zap.String("client_id", client.ID))
	return c.JSON(http.StatusOK, client)
}

// DeleteClient soft-deletes a client. Existing work orders keep their reference.
func DeleteClient(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "delete")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	client, err := findClient(c, tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("delete")(time.Now())

	if err := database.GetDB().Delete(client).Error; err != nil {
		log.Error("Failed to delete client", zap.String("client_id", client.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to delete client"})
	}

	log.Info("Client deleted successfully", zap.String("client_id", client.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "Client deleted successfully"})
}

// ListClientWorkOrders lists a client's work orders, newest first
func ListClientWorkOrders(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("client", "work_orders")

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	client, err := findClient(c, tenantID, c.Param("id"))
	if err != nil {
		return err
	}

	defer prometheus.TrackDBOperation("query")(time.Now())

	var orders []model.WorkOrder
	if err := database.GetDB().
		Preload("Worker", unscopedPreload).
		Where("tenant_id = ? AND client_id = ?", tenantID, client.ID).
		Order("created_at desc").
		Find(&orders).Error; err != nil {
		log.Error("Failed to retrieve client work orders", zap.String("client_id", client.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to retrieve work orders"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"client":      client,
		"work_orders": orders,
	})
}

func findClient(c echo.Context, tenantID uint, id string) (*model.Client, error) {
	defer prometheus.TrackDBOperation("query")(time.Now())

	var client model.Client
	err := database.GetDB().Where("id = ? AND tenant_id = ?", id, tenantID).First(&client).Error
	if err == nil {
		return &client, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logger.FromContext(c).Warn("Client not found", zap.String("client_id", id))
		return nil, httpError(http.StatusNotFound, "Client not found")
	}
	logger.FromContext(c).Error("Failed to load client", zap.String("client_id", id), zap.Error(err))
	return nil, httpError(http.StatusInternalServerError, "Failed to load client")
}

func unscopedPreload(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}
