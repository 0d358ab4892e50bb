package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Client is a customer account owned by a tenant
type Client struct {
	ID         string         `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID   uint           `json:"tenant_id" gorm:"index;not null;comment:'Tenant this client belongs to'"`
	Name       string         `json:"name" gorm:"type:varchar(255);index;not null"`
	Email      string         `json:"email,omitempty" gorm:"type:varchar(255)"`
	Phone      string         `json:"phone,omitempty" gorm:"type:varchar(50)"`
	Address    string         `json:"address,omitempty" gorm:"type:text"`
	ClientType ClientType     `json:"client_type" gorm:"type:varchar(20);not null;default:'Individual'"`
	Status     ActiveStatus   `json:"status" gorm:"type:varchar(20);index;not null;default:'Active'"`
	Notes      string         `json:"notes,omitempty" gorm:"type:text"`
	CreatedBy  uint           `json:"created_by" gorm:"index"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

// BeforeCreate assigns a uuid when the caller did not pick an id
func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}
