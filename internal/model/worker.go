package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Worker is a person who can be assigned to work orders
type Worker struct {
	ID        string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID  uint           `json:"tenant_id" gorm:"index;not null"`
	Name      string         `json:"name" gorm:"type:varchar(255);not null"`
	Email     string         `json:"email,omitempty" gorm:"type:varchar(255)"`
	Phone     string         `json:"phone,omitempty" gorm:"type:varchar(50)"`
	Status    ActiveStatus   `json:"status" gorm:"type:varchar(20);index;not null;default:'Active'"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (w *Worker) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	return nil
}
