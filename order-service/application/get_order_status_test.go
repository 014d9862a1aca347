package application

import (
	"context"
	"testing"

	"github.com/orderhub/order-system/order-service/domain"
	"github.com/orderhub/order-system/order-service/mocks"
	"github.com/orderhub/order-system/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestGetOrderStatus(t *testing.T) {
	orderID := models.GenerateUUID()

	tests := []struct {
		name          string
		query         *GetOrderStatusQuery
		setupMocks    func(*mocks.MockOrderRepository)
		expectedError string
		notFound      bool
	}{
		{
			name:  "successful lookup",
			query: &GetOrderStatusQuery{OrderID: orderID.String()},
			setupMocks: func(repo *mocks.MockOrderRepository) {
				repo.EXPECT().FindStatusByID(mock.Anything, orderID).Return(&domain.OrderProjection{
					OrderID:      orderID,
					CustomerName: "Alice",
					ProductName:  "Widget",
					Status:       domain.OrderStatusPending,
				}, nil).Once()
			},
		},
		{
			name:          "missing order ID",
			query:         &GetOrderStatusQuery{},
			setupMocks:    func(repo *mocks.MockOrderRepository) {},
			expectedError: "order ID is required",
		},
		{
			name:          "malformed order ID",
			query:         &GetOrderStatusQuery{OrderID: "not-a-uuid"},
			setupMocks:    func(repo *mocks.MockOrderRepository) {},
			expectedError: "invalid order ID",
		},
		{
			name:  "unknown order",
			query: &GetOrderStatusQuery{OrderID: orderID.String()},
			setupMocks: func(repo *mocks.MockOrderRepository) {
				repo.EXPECT().FindStatusByID(mock.Anything, orderID).Return(nil, nil).Once()
			},
			expectedError: "not found",
			notFound:      true,
		},
		{
			name:  "repository error",
			query: &GetOrderStatusQuery{OrderID: orderID.String()},
			setupMocks: func(repo *mocks.MockOrderRepository) {
				repo.EXPECT().FindStatusByID(mock.Anything, orderID).
					Return(nil, errors.New("database error")).Once()
			},
			expectedError: "failed to find order status",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := mocks.NewMockOrderRepository(t)
			tt.setupMocks(mockRepo)

			useCase := NewGetOrderStatus(mockRepo)

			projection, err := useCase.Execute(context.Background(), tt.query)

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				assert.Nil(t, projection)
				if tt.notFound {
					assert.ErrorIs(t, err, domain.ErrOrderNotFound)
				}
				return
			}

			assert.NoError(t, err)
			assert.Equal(t, orderID, projection.OrderID)
			assert.Equal(t, domain.OrderStatusPending, projection.Status)
		})
	}
}
