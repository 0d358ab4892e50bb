package database

import (
	"fmt"

	"github.com/mahalnishan/crm/internal/model"
	"github.com/mahalnishan/crm/pkg/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// InitDB initializes the database connection with configuration and runs migrations
func InitDB(cfg *config.Config, log *zap.Logger) error {
	var dialector gorm.Dialector
	switch cfg.DB.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.DB.Path)
	case "postgres", "":
		// Configure Postgres options
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.DB.GetDSN(),
			PreferSimpleProtocol: true, // Disables implicit prepared statement usage
		})
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.DB.Driver)
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(cfg.DB.GormLogLevel()),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get generic database object SQL
	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	// Set connection pool settings from config
	sqlDB.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	log.Info("Database connected", zap.String("driver", cfg.DB.Driver))

	if err := Migrate(conn); err != nil {
		return err
	}
	log.Info("Database migration completed")

	db = conn
	return nil
}

// Migrate creates or updates every table the service owns
func Migrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(
		&model.Tenant{},
		&model.User{},
		&model.Client{},
		&model.Worker{},
		&model.Service{},
		&model.WorkOrder{},
		&model.WorkOrderLine{},
	); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	return nil
}

// Use replaces the database instance; tests call it with a SQLite connection
func Use(conn *gorm.DB) {
	db = conn
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return db
}

// Ping checks that the underlying connection is alive
func Ping() error {
	if db == nil {
		return fmt.Errorf("database is not initialized")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close releases the connection pool
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
