// Package testutil provides SQLite-backed fixtures for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/mahalnishan/crm/internal/model"
	"github.com/mahalnishan/crm/pkg/database"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a migrated SQLite database in a temp dir
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "crm.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// SeedTenant creates a tenant with an owner user and returns both
func SeedTenant(t *testing.T, db *gorm.DB, name, email string) (*model.Tenant, *model.User) {
	t.Helper()

	tenant := &model.Tenant{
		Name:                 name,
		DefaultOrderStatus:   model.OrderPending,
		DefaultPaymentStatus: model.PaymentPending,
	}
	require.NoError(t, db.Create(tenant).Error)

	user := &model.User{Email: email, FullName: name + " Owner", TenantID: tenant.ID, Role: "owner"}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Model(tenant).Update("owner_id", user.ID).Error)
	tenant.OwnerID = user.ID

	return tenant, user
}

func SeedClient(t *testing.T, db *gorm.DB, tenantID uint, id, name string) *model.Client {
	t.Helper()
	c := &model.Client{
		ID:         id,
		TenantID:   tenantID,
		Name:       name,
		ClientType: model.ClientIndividual,
		Status:     model.StatusActive,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func SeedWorker(t *testing.T, db *gorm.DB, tenantID uint, id, name string) *model.Worker {
	t.Helper()
	w := &model.Worker{ID: id, TenantID: tenantID, Name: name, Status: model.StatusActive}
	require.NoError(t, db.Create(w).Error)
	return w
}

func SeedService(t *testing.T, db *gorm.DB, tenantID uint, id, name, price string) *model.Service {
	t.Helper()
	s := &model.Service{ID: id, TenantID: tenantID, Name: name, Price: decimal.RequireFromString(price)}
	require.NoError(t, db.Create(s).Error)
	return s
}

// Count returns the number of live rows of the given model
func Count(t *testing.T, db *gorm.DB, m interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(m).Count(&n).Error)
	return n
}
