package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mahalnishan/crm/internal/middleware"
	"github.com/mahalnishan/crm/internal/model"
	"github.com/mahalnishan/crm/pkg/database"
	"github.com/mahalnishan/crm/pkg/jwtutil"
	"github.com/mahalnishan/crm/pkg/logger"
	"github.com/mahalnishan/crm/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var errEmailTaken = errors.New("email already registered")

// RegisterRequest signs up an owner together with their organization
type RegisterRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=6"`
	FullName     string `json:"full_name" validate:"required"`
	Organization string `json:"organization" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProfileRequest struct {
	FullName string `json:"full_name" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

// Register creates the organization and its owner in one transaction
func Register(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("auth", "register")

	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	defer prometheus.TrackDBOperation("register")(time.Now())

	var (
		tenant model.Tenant
		user   model.User
	)
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.User{}).Where("email = ?", req.Email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errEmailTaken
		}

		tenant = model.Tenant{
			Name:                 req.Organization,
			DefaultOrderStatus:   model.OrderPending,
			DefaultPaymentStatus: model.PaymentPending,
		}
		if err := tx.Create(&tenant).Error; err != nil {
			return err
		}

		user = model.User{
			Email:    req.Email,
			Password: string(hashedPassword),
			FullName: req.FullName,
			TenantID: tenant.ID,
			Role:     "owner",
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		tenant.OwnerID = user.ID
		return tx.Model(&tenant).Update("owner_id", user.ID).Error
	})
	if errors.Is(err, errEmailTaken) {
		log.Warn("User already exists", zap.String("email", req.Email))
		return c.JSON(http.StatusConflict, echo.Map{"error": "email already registered"})
	}
	if err != nil {
		log.Error("Failed to register user", zap.String("email", req.Email), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	token, err := jwtutil.GenerateToken(user.Email, user.ID, tenant.ID, tenant.Name, user.Role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	log.Info("User registered", zap.String("email", user.Email), zap.Uint("tenant_id", tenant.ID))
	return c.JSON(http.StatusCreated, echo.Map{
		"token":  token,
		"user":   user,
		"tenant": tenant,
	})
}

// Login verifies credentials and issues a token scoped to the user's organization
func Login(c echo.Context) error {
	log := logger.FromContext(c)
	prometheus.RecordOperation("auth", "login")

	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	defer prometheus.TrackDBOperation("query")(time.Now())

	var user model.User
	if err := database.GetDB().Where("email = ?", req.Email).First(&user).Error; err != nil {
		log.Warn("User not found", zap.String("email", req.Email))
		prometheus.AuthErrorsCounter.Inc()
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.AuthErrorsCounter.Inc()
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	var tenant model.Tenant
	if err := database.GetDB().First(&tenant, user.TenantID).Error; err != nil {
		log.Error("Tenant not found for user", zap.Uint("tenant_id", user.TenantID), zap.Error(err))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "organization not found"})
	}

	token, err := jwtutil.GenerateToken(user.Email, user.ID, tenant.ID, tenant.Name, user.Role)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token error"})
	}

	prometheus.AuthSuccessCounter.Inc()
	log.Info("User logged in with tenant context",
		zap.String("email", user.Email),
		zap.Uint("tenant_id", tenant.ID),
		zap.String("role", user.Role))

	return c.JSON(http.StatusOK, echo.Map{
		"token": token,
		"user":  user,
		"tenant": echo.Map{
			"id":   tenant.ID,
			"name": tenant.Name,
			"role": user.Role,
		},
	})
}

// GetProfile returns the signed-in user and their organization
func GetProfile(c echo.Context) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}

	var tenant model.Tenant
	if err := database.GetDB().First(&tenant, user.TenantID).Error; err != nil {
		logger.FromContext(c).Error("Failed to load tenant", zap.Uint("tenant_id", user.TenantID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to load profile"})
	}

	return c.JSON(http.StatusOK, echo.Map{"user": user, "tenant": tenant})
}

// UpdateProfile changes the signed-in user's display name
func UpdateProfile(c echo.Context) error {
	log := logger.FromContext(c)

	var req ProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := currentUser(c)
	if err != nil {
		return err
	}

	if err := database.GetDB().Model(user).Update("full_name", req.FullName).Error; err != nil {
		log.Error("Failed to update profile", zap.Uint("user_id", user.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to update profile"})
	}

	user.FullName = req.FullName
	return c.JSON(http.StatusOK, user)
}

// ChangePassword replaces the password after checking the current one
func ChangePassword(c echo.Context) error {
	log := logger.FromContext(c)

	var req ChangePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := currentUser(c)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		log.Warn("Current password mismatch", zap.Uint("user_id", user.ID))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current password is incorrect"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to change password"})
	}

	if err := database.GetDB().Model(user).Update("password", string(hashed)).Error; err != nil {
		log.Error("Failed to change password", zap.Uint("user_id", user.ID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to change password"})
	}

	log.Info("Password changed", zap.Uint("user_id", user.ID))
	return c.JSON(http.StatusOK, echo.Map{"message": "Password changed successfully"})
}

func currentUser(c echo.Context) (*model.User, error) {
	userID, ok := middleware.UserID(c)
	if !ok {
		return nil, httpError(http.StatusUnauthorized, "authentication required")
	}

	var user model.User
	if err := database.GetDB().First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, httpError(http.StatusNotFound, "User not found")
		}
		logger.FromContext(c).Error("Failed to load user", zap.Uint("user_id", userID), zap.Error(err))
		return nil, httpError(http.StatusInternalServerError, "Failed to load user")
	}
	return &user, nil
}
