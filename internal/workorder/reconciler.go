// Package workorder keeps a work order's total equal to the sum of its service
// lines whenever the order is created or edited.
package workorder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mahalnishan/crm/internal/model"
	"github.com/mahalnishan/crm/pkg/events"
	"github.com/mahalnishan/crm/pkg/logger"
	"github.com/mahalnishan/crm/prometheus"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const publishTimeout = 5 * time.Second

// Draft holds the editable fields of a work order
type Draft struct {
	Title         string
	Description   string
	ClientID      string
	WorkerID      *string
	Status        model.OrderStatus
	PaymentStatus model.PaymentStatus
	ScheduledDate *time.Time
	CompletedDate *time.Time

	// Version is the version the caller last read. Update rejects the write
	// with ErrConflict when the stored order has moved on. Nil skips the check.
	Version *int
}

// Reconciler creates, edits and deletes work orders together with their lines
type Reconciler struct {
	db        *gorm.DB
	publisher events.Publisher
	now       func() time.Time
}

func NewReconciler(db *gorm.DB, publisher events.Publisher) *Reconciler {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Reconciler{db: db, publisher: publisher, now: time.Now}
}

func (d *Draft) normalize() {
	d.Title = strings.TrimSpace(d.Title)
	d.ClientID = strings.TrimSpace(d.ClientID)
	if d.WorkerID != nil {
		id := strings.TrimSpace(*d.WorkerID)
		if id == "" {
			d.WorkerID = nil
		} else {
			d.WorkerID = &id
		}
	}
	if d.Status == "" {
		d.Status = model.OrderPending
	}
	if d.PaymentStatus == "" {
		d.PaymentStatus = model.PaymentPending
	}
}

func (d *Draft) validate(lines []LineInput) error {
	if d.Title == "" {
		return invalid("title", "is required")
	}
	if d.ClientID == "" {
		return invalid("client_id", "is required")
	}
	if !d.Status.Valid() {
		return invalid("status", "must be one of Pending, In Progress, Completed, Cancelled")
	}
	if !d.PaymentStatus.Valid() {
		return invalid("payment_status", "must be one of Pending, Paid, Partial")
	}
	if len(lines) == 0 {
		return invalid("lines", "at least one service is required")
	}
	for i, l := range lines {
		if strings.TrimSpace(l.ServiceID) == "" {
			return invalid(fmt.Sprintf("lines[%d].service_id", i), "is required")
		}
		if l.Quantity <= 0 {
			return invalid(fmt.Sprintf("lines[%d].quantity", i), "must be a positive integer")
		}
	}
	return nil
}

// Create validates the draft, prices the lines from the current catalog and
// saves the order and its lines in one transaction.
func (r *Reconciler) Create(ctx context.Context, tenantID uint, draft Draft, lines []LineInput) (*model.WorkOrder, error) {
	defer prometheus.TrackDBOperation("create_work_order")(time.Now())

	draft.normalize()
	if err := draft.validate(lines); err != nil {
		return nil, err
	}

	var order model.WorkOrder
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		client, worker, priced, total, err := r.resolve(tx, tenantID, &draft, lines)
		if err != nil {
			return err
		}

		order = model.WorkOrder{
			TenantID:      tenantID,
			Title:         draft.Title,
			Description:   draft.Description,
			ClientID:      draft.ClientID,
			WorkerID:      draft.WorkerID,
			Status:        draft.Status,
			PaymentStatus: draft.PaymentStatus,
			ScheduledDate: draft.ScheduledDate,
			CompletedDate: draft.CompletedDate,
			TotalAmount:   total,
			Version:       1,
		}
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return persistence("create work order", err)
		}

		if err := insertLines(tx, order.ID, priced); err != nil {
			return err
		}

		order.Client = client
		order.Worker = worker
		order.Lines = priced
		return nil
	})
	if err != nil {
		return nil, asPersistence("create work order", err)
	}

	prometheus.RecordOperation("work_order", "create")
	prometheus.ObserveWorkOrderTotal(order.TotalAmount.InexactFloat64())
	r.publish(ctx, events.WorkOrderCreated, &order)

	return &order, nil
}

// Update applies the draft to an existing order and replaces all of its lines.
// Prices are captured again from the current catalog.
func (r *Reconciler) Update(ctx context.Context, tenantID uint, id string, draft Draft, lines []LineInput) (*model.WorkOrder, error) {
	defer prometheus.TrackDBOperation("update_work_order")(time.Now())

	draft.normalize()
	if err := draft.validate(lines); err != nil {
		return nil, err
	}

	var order model.WorkOrder
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND tenant_id = ?", id, tenantID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("work_order", id)
			}
			return persistence("load work order", err)
		}
		if draft.Version != nil && *draft.Version != order.Version {
			return conflict(id, *draft.Version, order.Version)
		}

		client, worker, priced, total, err := r.resolve(tx, tenantID, &draft, lines)
		if err != nil {
			return err
		}

		now := r.now()
		res := tx.Model(&model.WorkOrder{}).
			Where("id = ? AND tenant_id = ? AND version = ?", id, tenantID, order.Version).
			Updates(map[string]interface{}{
				"title":          draft.Title,
				"description":    draft.Description,
				"client_id":      draft.ClientID,
				"worker_id":      draft.WorkerID,
				"status":         draft.Status,
				"payment_status": draft.PaymentStatus,
				"scheduled_date": draft.ScheduledDate,
				"completed_date": draft.CompletedDate,
				"total_amount":   total,
				"version":        order.Version + 1,
				"updated_at":     now,
			})
		if res.Error != nil {
			return persistence("update work order", res.Error)
		}
		if res.RowsAffected == 0 {
			return changedConcurrently(id)
		}

		if err := tx.Where("work_order_id = ?", id).Delete(&model.WorkOrderLine{}).Error; err != nil {
			return persistence("delete work order lines", err)
		}
		if err := insertLines(tx, id, priced); err != nil {
			return err
		}

		order.Title = draft.Title
		order.Description = draft.Description
		order.ClientID = draft.ClientID
		order.WorkerID = draft.WorkerID
		order.Status = draft.Status
		order.PaymentStatus = draft.PaymentStatus
		order.ScheduledDate = draft.ScheduledDate
		order.CompletedDate = draft.CompletedDate
		order.TotalAmount = total
		order.Version++
		order.UpdatedAt = now
		order.Client = client
		order.Worker = worker
		order.Lines = priced
		return nil
	})
	if err != nil {
		return nil, asPersistence("update work order", err)
	}

	prometheus.RecordOperation("work_order", "update")
	prometheus.ObserveWorkOrderTotal(order.TotalAmount.InexactFloat64())
	r.publish(ctx, events.WorkOrderUpdated, &order)

	return &order, nil
}

// Get loads an order with its client, worker and lines. Referenced records
// that were deleted after the order was saved are still shown.
func (r *Reconciler) Get(ctx context.Context, tenantID uint, id string) (*model.WorkOrder, error) {
	defer prometheus.TrackDBOperation("get_work_order")(time.Now())

	var order model.WorkOrder
	err := r.db.WithContext(ctx).
		Preload("Client", unscoped).
		Preload("Worker", unscoped).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Lines.Service", unscoped).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("work_order", id)
		}
		return nil, persistence("load work order", err)
	}
	return &order, nil
}

// Delete removes the order's lines and the order itself
func (r *Reconciler) Delete(ctx context.Context, tenantID uint, id string) error {
	defer prometheus.TrackDBOperation("delete_work_order")(time.Now())

	var order model.WorkOrder
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND tenant_id = ?", id, tenantID).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFound("work_order", id)
			}
			return persistence("load work order", err)
		}
		if err := tx.Where("work_order_id = ?", id).Delete(&model.WorkOrderLine{}).Error; err != nil {
			return persistence("delete work order lines", err)
		}
		if err := tx.Delete(&order).Error; err != nil {
			return persistence("delete work order", err)
		}
		return nil
	})
	if err != nil {
		return asPersistence("delete work order", err)
	}

	prometheus.RecordOperation("work_order", "delete")
	r.publish(ctx, events.WorkOrderDeleted, &order)
	return nil
}

// resolve looks up the client, the optional worker and the current price of
// every referenced service, then prices the lines.
func (r *Reconciler) resolve(tx *gorm.DB, tenantID uint, draft *Draft, lines []LineInput) (*model.Client, *model.Worker, []model.WorkOrderLine, decimal.Decimal, error) {
	var client model.Client
	if err := tx.Where("id = ? AND tenant_id = ?", draft.ClientID, tenantID).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, nil, decimal.Zero, notFound("client", draft.ClientID)
		}
		return nil, nil, nil, decimal.Zero, persistence("load client", err)
	}

	var worker *model.Worker
	if draft.WorkerID != nil {
		worker = &model.Worker{}
		if err := tx.Where("id = ? AND tenant_id = ?", *draft.WorkerID, tenantID).First(worker).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, nil, nil, decimal.Zero, notFound("worker", *draft.WorkerID)
			}
			return nil, nil, nil, decimal.Zero, persistence("load worker", err)
		}
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.ServiceID != "" {
			ids = append(ids, l.ServiceID)
		}
	}
	var services []model.Service
	if len(ids) > 0 {
		if err := tx.Where("tenant_id = ? AND id IN ?", tenantID, ids).Find(&services).Error; err != nil {
			return nil, nil, nil, decimal.Zero, persistence("load services", err)
		}
	}
	catalog := make(Catalog, len(services))
	byID := make(map[string]*model.Service, len(services))
	for i := range services {
		catalog[services[i].ID] = services[i].Price
		byID[services[i].ID] = &services[i]
	}

	priced, total, err := Price(lines, catalog)
	if err != nil {
		return nil, nil, nil, decimal.Zero, err
	}
	for i := range priced {
		priced[i].Service = byID[priced[i].ServiceID]
	}
	return &client, worker, priced, total, nil
}

func insertLines(tx *gorm.DB, orderID string, lines []model.WorkOrderLine) error {
	for i := range lines {
		lines[i].WorkOrderID = orderID
	}
	if err := tx.Omit(clause.Associations).Create(&lines).Error; err != nil {
		return persistence("create work order lines", err)
	}
	return nil
}

func unscoped(db *gorm.DB) *gorm.DB {
	return db.Unscoped()
}

// asPersistence keeps typed errors and wraps anything else, such as a failed commit
func asPersistence(op string, err error) error {
	var werr *Error
	if errors.As(err, &werr) {
		return werr
	}
	return persistence(op, err)
}

func (r *Reconciler) publish(ctx context.Context, eventType string, order *model.WorkOrder) {
	event := events.WorkOrderEvent{
		Type:          eventType,
		TenantID:      order.TenantID,
		WorkOrderID:   order.ID,
		ClientID:      order.ClientID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		TotalAmount:   order.TotalAmount,
		LineCount:     len(order.Lines),
		Version:       order.Version,
		OccurredAt:    r.now().UTC(),
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	err := r.publisher.Publish(pctx, event)
	prometheus.RecordEventPublished(eventType, err)
	if err != nil {
		logger.FromGoContext(ctx).Warn("Failed to publish work order event",
			zap.String("type", eventType),
			zap.String("work_order_id", order.ID),
			zap.Error(err),
		)
	}
}
