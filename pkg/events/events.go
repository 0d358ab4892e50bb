package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Event types published for work orders
const (
	WorkOrderCreated = "work_order.created"
	WorkOrderUpdated = "work_order.updated"
	WorkOrderDeleted = "work_order.deleted"
)

// WorkOrderEvent is the message body published after a work order change commits
type WorkOrderEvent struct {
	Type          string          `json:"type"`
	TenantID      uint            `json:"tenant_id"`
	WorkOrderID   string          `json:"work_order_id"`
	ClientID      string          `json:"client_id,omitempty"`
	Status        string          `json:"status,omitempty"`
	PaymentStatus string          `json:"payment_status,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	LineCount     int             `json:"line_count"`
	Version       int             `json:"version"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// RoutingKey is the topic the event is published under
func (e WorkOrderEvent) RoutingKey() string {
	return e.Type
}

// MessageID identifies one change of one order. A delete keeps the version of
// the last save, so the event type is part of the id.
func (e WorkOrderEvent) MessageID() string {
	return fmt.Sprintf("%s:%s-%d", e.Type, e.WorkOrderID, e.Version)
}

// Encode serializes the event as JSON
func (e WorkOrderEvent) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers work-order events to interested consumers
type Publisher interface {
	Publish(ctx context.Context, event WorkOrderEvent) error
	Close() error
}

// NopPublisher drops every event; used when no broker is configured
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, WorkOrderEvent) error { return nil }
func (NopPublisher) Close() error                                    { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []WorkOrderEvent
	Err    error
}

func (r *Recorder) Publish(_ context.Context, event WorkOrderEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything published so far
func (r *Recorder) Events() []WorkOrderEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]WorkOrderEvent, len(r.events))
	copy(out, r.events)
	return out
}
