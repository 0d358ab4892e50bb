package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/mahalnishan/crm/internal/model"
	"github.com/mahalnishan/crm/pkg/database"
	"github.com/mahalnishan/crm/pkg/logger"
	"go.uber.org/zap"
)

// SettingsRequest updates the organization's name and work order defaults
type SettingsRequest struct {
	Name                 string `json:"name"`
	DefaultOrderStatus   string `json:"default_order_status" validate:"omitempty,oneof=Pending 'In Progress' Completed Cancelled"`
	DefaultPaymentStatus string `json:"default_payment_status" validate:"omitempty,oneof=Pending Paid Partial"`
}

// GetSettings returns the organization settings
func GetSettings(c echo.Context) error {
	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}

	var tenant model.Tenant
	if err := database.GetDB().First(&tenant, tenantID).Error; err != nil {
		logger.FromContext(c).Error("Failed to load settings", zap.Uint("tenant_id", tenantID), zap.Error(err))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Organization not found"})
	}
	return c.JSON(http.StatusOK, tenant)
}

// UpdateSettings changes organization settings; only the owner may do this
func UpdateSettings(c echo.Context) error {
	log := logger.FromContext(c)

	tenantID, ok := tenantID(c)
	if !ok {
		return errMissingTenant(c)
	}
	if role, _ := c.Get("role").(string); role != "owner" {
		log.Warn("Settings update denied", zap.String("role", role))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the organization owner can change settings"})
	}

	var req SettingsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	var tenant model.Tenant
	if err := database.GetDB().First(&tenant, tenantID).Error; err != nil {
		log.Error("Failed to load settings", zap.Uint("tenant_id", tenantID), zap.Error(err))
		return c.JSON(http.StatusNotFound, echo.Map{"error": "Organization not found"})
	}

	if req.Name != "" {
		tenant.Name = req.Name
	}
	if req.DefaultOrderStatus != "" {
		tenant.DefaultOrderStatus = model.OrderStatus(req.DefaultOrderStatus)
	}
	if req.DefaultPaymentStatus != "" {
		tenant.DefaultPaymentStatus = model.PaymentStatus(req.DefaultPaymentStatus)
	}

	if err := database.GetDB().Save(&tenant).Error; err != nil {
		log.Error("Failed to update settings", zap.Uint("tenant_id", tenantID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update settings"})
	}

	log.Info("Settings updated", zap.Uint("tenant_id", tenantID))
	return c.JSON(http.StatusOK, tenant)
}
