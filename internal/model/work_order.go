package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WorkOrder is a unit of billable work for one client.
// TotalAmount always equals the sum of its lines' TotalPrice as of the last save.
type WorkOrder struct {
	ID            string          `json:"id" gorm:"type:varchar(36);primaryKey"`
	TenantID      uint            `json:"tenant_id" gorm:"index;not null"`
	Title         string          `json:"title" gorm:"type:varchar(255);not null"`
	Description   string          `json:"description,omitempty" gorm:"type:text"`
	ClientID      string          `json:"client_id" gorm:"type:varchar(36);index;not null"`
	WorkerID      *string         `json:"worker_id,omitempty" gorm:"type:varchar(36);index"`
	Status        OrderStatus     `json:"status" gorm:"type:varchar(20);index;not null;default:'Pending'"`
	PaymentStatus PaymentStatus   `json:"payment_status" gorm:"type:varchar(20);index;not null;default:'Pending'"`
	ScheduledDate *time.Time      `json:"scheduled_date,omitempty"`
	CompletedDate *time.Time      `json:"completed_date,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount" gorm:"type:decimal(12,2);not null;default:0"`
	Version       int             `json:"version" gorm:"not null;default:1"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     gorm.DeletedAt  `json:"-" gorm:"index"`

	// Relations
	Client *Client         `json:"client,omitempty" gorm:"foreignKey:ClientID"`
	Worker *Worker         `json:"worker,omitempty" gorm:"foreignKey:WorkerID"`
	Lines  []WorkOrderLine `json:"lines,omitempty" gorm:"foreignKey:WorkOrderID"`
}

func (o *WorkOrder) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return nil
}

// WorkOrderLine is a quantity of one service on a work order.
// UnitPrice is copied from the catalog when the line is saved.
type WorkOrderLine struct {
	ID          string          `json:"id" gorm:"type:varchar(36);primaryKey"`
	WorkOrderID string          `json:"work_order_id" gorm:"type:varchar(36);index;not null"`
	ServiceID   string          `json:"service_id" gorm:"type:varchar(36);index;not null"`
	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitPrice   decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null"`
	TotalPrice  decimal.Decimal `json:"total_price" gorm:"type:decimal(12,2);not null"`

	Service *Service `json:"service,omitempty" gorm:"foreignKey:ServiceID"`
}

// TableName keeps the join table name used by the dashboard
func (WorkOrderLine) TableName() string {
	return "work_order_services"
}

// BeforeCreate uses time-ordered ids so lines read back in entry order
func (l *WorkOrderLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return err
		}
		l.ID = id.String()
	}
	return nil
}
