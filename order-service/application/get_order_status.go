package application

import (
	"context"

	"github.com/orderhub/order-system/order-service/domain"
	"github.com/orderhub/order-system/shared/models"
	"github.com/pkg/errors"
)

// GetOrderStatusQuery represents the query to fetch one order projection
type GetOrderStatusQuery struct {
	OrderID string `json:"order_id"`
}

// GetOrderStatus use case
type GetOrderStatus struct {
	orderRepository domain.OrderRepository
}

// NewGetOrderStatus creates a new GetOrderStatus use case
func NewGetOrderStatus(orderRepository domain.OrderRepository) *GetOrderStatus {
	return &GetOrderStatus{orderRepository: orderRepository}
}

// Execute returns the status projection for one order
func (uc *GetOrderStatus) Execute(ctx context.Context, query *GetOrderStatusQuery) (*domain.OrderProjection, error) {
	if query.OrderID == "" {
		return nil, errors.New("order ID is required")
	}

	orderID, err := models.NewID(query.OrderID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid order ID")
	}

	projection, err := uc.orderRepository.FindStatusByID(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find order status")
	}

	if projection == nil {
		return nil, errors.Wrapf(domain.ErrOrderNotFound, "order %s", orderID)
	}

	return projection, nil
}
