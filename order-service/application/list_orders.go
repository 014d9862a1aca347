package application

import (
	"context"

	"github.com/orderhub/order-system/order-service/domain"
	"github.com/pkg/errors"
)

// ListOrdersByStatusQuery represents the query to list order projections
type ListOrdersByStatusQuery struct {
	Status string `json:"status"`
}

// ListOrdersByStatus use case
type ListOrdersByStatus struct {
	orderRepository domain.OrderRepository
}

// NewListOrdersByStatus creates a new ListOrdersByStatus use case
func NewListOrdersByStatus(orderRepository domain.OrderRepository) *ListOrdersByStatus {
	return &ListOrdersByStatus{orderRepository: orderRepository}
}

// Execute returns projections of all orders with the given status
func (uc *ListOrdersByStatus) Execute(ctx context.Context, query *ListOrdersByStatusQuery) ([]*domain.OrderProjection, error) {
	if query.Status == "" {
		return nil, errors.New("status is required")
	}

	projections, err := uc.orderRepository.FindByStatus(ctx, domain.OrderStatus(query.Status))
	if err != nil {
		return nil, errors.Wrap(err, "failed to find orders by status")
	}

	return projections, nil
}
