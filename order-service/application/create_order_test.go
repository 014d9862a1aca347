package application

import (
	"context"
	"testing"

	"github.com/orderhub/order-system/order-service/domain"
	"github.com/orderhub/order-system/order-service/mocks"
	"github.com/orderhub/order-system/shared/events"
	"github.com/orderhub/order-system/shared/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestCreateOrder_Execute(t *testing.T) {
	tests := []struct {
		name          string
		command       *CreateOrderCommand
		setupMocks    func(*mocks.MockOrderRepository, *mocks.MockPublisher)
		expectedError string
	}{
		{
			name: "successful order creation",
			command: &CreateOrderCommand{
				CustomerName: "Alice",
				ProductName:  "Widget",
				Quantity:     3,
			},
			setupMocks: func(repo *mocks.MockOrderRepository, publisher *mocks.MockPublisher) {
				repo.EXPECT().Save(mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil).Once()
				publisher.EXPECT().Publish(mock.Anything, mock.MatchedBy(func(evt *events.Event) bool {
					return evt.Topic == events.OrderCreatedTopic
				})).Return(nil).Once()
			},
		},
		{
			name: "empty customer name",
			command: &CreateOrderCommand{
				ProductName: "Widget",
				Quantity:    3,
			},
			setupMocks:    func(repo *mocks.MockOrderRepository, publisher *mocks.MockPublisher) {},
			expectedError: "customer name is required",
		},
		{
			name: "empty product name",
			command: &CreateOrderCommand{
				CustomerName: "Alice",
				Quantity:     3,
			},
			setupMocks:    func(repo *mocks.MockOrderRepository, publisher *mocks.MockPublisher) {},
			expectedError: "product name is required",
		},
		{
			name: "negative quantity",
			command: &CreateOrderCommand{
				CustomerName: "Alice",
				ProductName:  "Widget",
				Quantity:     -5,
			},
			setupMocks:    func(repo *mocks.MockOrderRepository, publisher *mocks.MockPublisher) {},
			expectedError: "quantity cannot be negative",
		},
		{
			name: "repository save error",
			command: &CreateOrderCommand{
				CustomerName: "Alice",
				ProductName:  "Widget",
				Quantity:     3,
			},
			setupMocks: func(repo *mocks.MockOrderRepository, publisher *mocks.MockPublisher) {
				repo.EXPECT().Save(mock.Anything, mock.AnythingOfType("*domain.Order")).
					Return(errors.New("database error")).Once()
			},
			expectedError: "failed to save order",
		},
		{
			name: "publish error after successful save",
			command: &CreateOrderCommand{
				CustomerName: "Alice",
				ProductName:  "Widget",
				Quantity:     3,
			},
			setupMocks: func(repo *mocks.MockOrderRepository, publisher *mocks.MockPublisher) {
				repo.EXPECT().Save(mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil).Once()
				publisher.EXPECT().Publish(mock.Anything, mock.Anything).
					Return(errors.New("transport failure")).Once()
			},
			expectedError: "failed to publish order created event",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := mocks.NewMockOrderRepository(t)
			mockPublisher := mocks.NewMockPublisher(t)

			tt.setupMocks(mockRepo, mockPublisher)

			useCase := NewCreateOrder(mockRepo, mockPublisher)

			result, err := useCase.Execute(context.Background(), tt.command)

			if tt.expectedError != "" {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				assert.Nil(t, result)
				return
			}

			assert.NoError(t, err)
			assert.NotNil(t, result)
			assert.Equal(t, tt.command.CustomerName, result.CustomerName)
			assert.Equal(t, tt.command.ProductName, result.ProductName)
			assert.Equal(t, tt.command.Quantity, result.Quantity)
			assert.Equal(t, domain.OrderStatusPending, result.Status)

			_, err = models.NewID(result.OrderID)
			assert.NoError(t, err)
		})
	}
}

func TestCreateOrder_PersistsBeforePublishing(t *testing.T) {
	mockRepo := mocks.NewMockOrderRepository(t)
	mockPublisher := mocks.NewMockPublisher(t)

	var saved *domain.Order
	mockRepo.EXPECT().Save(mock.Anything, mock.AnythingOfType("*domain.Order")).
		Run(func(ctx context.Context, order *domain.Order) {
			saved = order
		}).Return(nil).Once()

	mockPublisher.EXPECT().Publish(mock.Anything, mock.MatchedBy(func(evt *events.Event) bool {
		// By the time the message goes out the record is already durable
		return saved != nil && evt.AggregateID == saved.ID
	})).Return(nil).Once()

	useCase := NewCreateOrder(mockRepo, mockPublisher)

	_, err := useCase.Execute(context.Background(), &CreateOrderCommand{
		CustomerName: "Alice",
		ProductName:  "Widget",
		Quantity:     3,
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, saved.Status)
	assert.Equal(t, domain.SagaStatusInitiated, saved.SagaStatus)
}
