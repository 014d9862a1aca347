package application

import (
	"context"

	"github.com/orderhub/order-system/order-service/domain"
	"github.com/orderhub/order-system/shared/events"
	"github.com/pkg/errors"
)

// CreateOrderCommand represents the command to create an order
type CreateOrderCommand struct {
	CustomerName string `json:"customer_name"`
	ProductName  string `json:"product_name"`
	Quantity     int64  `json:"quantity"`
}

// CreateOrderResponse represents the created order projection
type CreateOrderResponse struct {
	OrderID      string             `json:"order_id"`
	CustomerName string             `json:"customer_name"`
	ProductName  string             `json:"product_name"`
	Quantity     int64              `json:"quantity"`
	Status       domain.OrderStatus `json:"status"`
}

// CreateOrder use case: persist the initial order state and publish the
// saga-triggering message
type CreateOrder struct {
	orderRepository domain.OrderRepository
	eventPublisher  events.Publisher
}

// NewCreateOrder creates a new CreateOrder use case
func NewCreateOrder(
	orderRepository domain.OrderRepository,
	eventPublisher events.Publisher,
) *CreateOrder {
	return &CreateOrder{
		orderRepository: orderRepository,
		eventPublisher:  eventPublisher,
	}
}

// Execute creates the order and publishes its identifier to the order queue.
// The publish happens only after the persisted write succeeds; a publish
// failure leaves the PENDING record in place and is surfaced to the caller.
func (uc *CreateOrder) Execute(ctx context.Context, cmd *CreateOrderCommand) (*CreateOrderResponse, error) {
	if err := uc.validateCommand(cmd); err != nil {
		return nil, errors.Wrap(err, "invalid command")
	}

	order, err := domain.CreateOrder(cmd.CustomerName, cmd.ProductName, cmd.Quantity)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create order")
	}

	if err := uc.orderRepository.Save(ctx, order); err != nil {
		return nil, errors.Wrap(err, "failed to save order")
	}

	if err := uc.eventPublisher.Publish(ctx, order.Events()...); err != nil {
		return nil, errors.Wrap(err, "failed to publish order created event")
	}

	order.ClearEvents()

	return &CreateOrderResponse{
		OrderID:      order.ID.String(),
		CustomerName: order.CustomerName,
		ProductName:  order.ProductName,
		Quantity:     order.Quantity,
		Status:       order.Status,
	}, nil
}

func (uc *CreateOrder) validateCommand(cmd *CreateOrderCommand) error {
	if cmd.CustomerName == "" {
		return errors.New("customer name is required")
	}

	if cmd.ProductName == "" {
		return errors.New("product name is required")
	}

	if cmd.Quantity < 0 {
		return errors.New("quantity cannot be negative")
	}

	return nil
}
