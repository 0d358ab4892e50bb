package model

import (
	"time"

	"gorm.io/gorm"
)

// Tenant is the organization account that owns clients, workers, services and work orders
type Tenant struct {
	ID                   uint           `json:"id" gorm:"primaryKey"`
	Name                 string         `json:"name" gorm:"type:varchar(100);not null"`
	OwnerID              uint           `json:"owner_id" gorm:"index"`
	DefaultOrderStatus   OrderStatus    `json:"default_order_status" gorm:"type:varchar(20);not null;default:'Pending'"`
	DefaultPaymentStatus PaymentStatus  `json:"default_payment_status" gorm:"type:varchar(20);not null;default:'Pending'"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `json:"-" gorm:"index"`
}

// User represents the user model stored in the database
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Email     string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Password  string         `json:"-" gorm:"type:varchar(255)"`
	FullName  string         `json:"full_name" gorm:"type:varchar(255)"`
	TenantID  uint           `json:"tenant_id" gorm:"index;not null"`
	Role      string         `json:"role" gorm:"type:varchar(50);not null;default:'member'"` // 'owner' or 'member'
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
