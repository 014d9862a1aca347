package domain

import (
	"context"
	"time"

	"github.com/orderhub/order-system/shared/events"
	"github.com/orderhub/order-system/shared/models"
	"github.com/pkg/errors"
)

var (
	// ErrOrderNotFound indicates the requested identifier has no record
	ErrOrderNotFound = errors.New("order not found")
	// ErrStaleOrder indicates a conditional write lost against a newer record version
	ErrStaleOrder = errors.New("order was modified concurrently")
)

// OrderStatus represents the visible lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusFailed     OrderStatus = "FAILED"
)

// SagaStatus tracks orchestration progress independently of the business status
type SagaStatus string

const (
	SagaStatusInitiated  SagaStatus = "INITIATED"
	SagaStatusInProgress SagaStatus = "IN_PROGRESS"
	SagaStatusSuccess    SagaStatus = "SUCCESS"
	SagaStatusRollback   SagaStatus = "ROLLBACK"
)

// SagaStatusFor returns the saga status paired with the given order status.
// The two fields always move together as a unit.
func SagaStatusFor(status OrderStatus) SagaStatus {
	switch status {
	case OrderStatusPending:
		return SagaStatusInitiated
	case OrderStatusProcessing:
		return SagaStatusInProgress
	case OrderStatusCompleted:
		return SagaStatusSuccess
	default:
		return SagaStatusRollback
	}
}

// Order aggregate root
type Order struct {
	ID           models.ID
	CustomerName string
	ProductName  string
	Quantity     int64
	Status       OrderStatus
	SagaStatus   SagaStatus
	Timestamps   models.Timestamps
	Version      models.Version

	events []*events.Event
}

// CreateOrder factory method
func CreateOrder(customerName, productName string, quantity int64) (*Order, error) {
	if customerName == "" {
		return nil, errors.New("customer name is required")
	}

	if productName == "" {
		return nil, errors.New("product name is required")
	}

	if quantity < 0 {
		return nil, errors.New("quantity cannot be negative")
	}

	order := &Order{
		ID:           models.GenerateUUID(),
		CustomerName: customerName,
		ProductName:  productName,
		Quantity:     quantity,
		Status:       OrderStatusPending,
		SagaStatus:   SagaStatusInitiated,
		Timestamps:   models.NewTimestamps(),
		Version:      models.NewVersion(),
	}

	event := events.NewEvent(order.ID, events.OrderCreatedTopic, OrderCreatedData{
		OrderID: order.ID,
	})

	order.recordEvent(event)
	return order, nil
}

// Process marks the order as being worked on
func (o *Order) Process() error {
	if o.Status != OrderStatusPending {
		return errors.Errorf("order can only be processed from %s status, got %s", OrderStatusPending, o.Status)
	}

	o.transition(OrderStatusProcessing)
	return nil
}

// Complete marks the order as successfully processed
func (o *Order) Complete() error {
	if o.Status != OrderStatusProcessing {
		return errors.Errorf("order can only be completed from %s status, got %s", OrderStatusProcessing, o.Status)
	}

	o.transition(OrderStatusCompleted)

	event := events.NewEvent(o.ID, events.OrderCompletedTopic, OrderCompletedData{
		OrderID:     o.ID,
		CompletedAt: time.Now(),
	})

	o.recordEvent(event)
	return nil
}

// Fail is the compensating transition applied when processing cannot complete
func (o *Order) Fail(reason string) error {
	if o.IsTerminal() {
		return errors.Errorf("order in terminal status %s cannot be failed", o.Status)
	}

	o.transition(OrderStatusFailed)

	event := events.NewEvent(o.ID, events.OrderFailedTopic, OrderFailedData{
		OrderID:  o.ID,
		Reason:   reason,
		FailedAt: time.Now(),
	})

	o.recordEvent(event)
	return nil
}

// IsTerminal reports whether the order reached an absorbing state
func (o *Order) IsTerminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusFailed
}

// transition updates both status fields as one unit
func (o *Order) transition(status OrderStatus) {
	o.Status = status
	o.SagaStatus = SagaStatusFor(status)
	o.Timestamps = o.Timestamps.Update()
	o.Version = o.Version.Update()
}

// Events returns recorded domain events
func (o *Order) Events() []*events.Event {
	return o.events
}

// ClearEvents clears recorded domain events
func (o *Order) ClearEvents() {
	o.events = make([]*events.Event, 0)
}

func (o *Order) recordEvent(event *events.Event) {
	o.events = append(o.events, event)
}

// Event data structures
type OrderCreatedData struct {
	OrderID models.ID `json:"order_id"`
}

type OrderCompletedData struct {
	OrderID     models.ID `json:"order_id"`
	CompletedAt time.Time `json:"completed_at"`
}

type OrderFailedData struct {
	OrderID  models.ID `json:"order_id"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}

// OrderProjection is the read-only view returned by status queries
type OrderProjection struct {
	OrderID      models.ID   `json:"order_id" db:"order_id"`
	CustomerName string      `json:"customer_name" db:"customer_name"`
	ProductName  string      `json:"product_name" db:"product_name"`
	Status       OrderStatus `json:"status" db:"status"`
}

// OrderRepository interface
type OrderRepository interface {
	Save(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id models.ID) (*Order, error)
	FindByStatus(ctx context.Context, status OrderStatus) ([]*OrderProjection, error)
	FindStatusByID(ctx context.Context, id models.ID) (*OrderProjection, error)
}
