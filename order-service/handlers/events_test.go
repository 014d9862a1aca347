package handlers

import (
	"context"
	"testing"

	"github.com/orderhub/order-system/order-service/application"
	"github.com/orderhub/order-system/order-service/domain"
	"github.com/orderhub/order-system/order-service/mocks"
	"github.com/orderhub/order-system/shared/events"
	"github.com/orderhub/order-system/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newEventHandlers(repo *mocks.MockOrderRepository, publisher *mocks.MockPublisher, processor application.Processor) *OrderEventHandlers {
	return NewOrderEventHandlers(application.NewProcessOrder(repo, publisher, processor))
}

func noopProcessor() application.Processor {
	return application.ProcessorFunc(func(ctx context.Context, order *domain.Order) error {
		return nil
	})
}

func TestOrderEventHandlers_HandleOrderCreated(t *testing.T) {
	mockRepo := mocks.NewMockOrderRepository(t)
	mockPublisher := mocks.NewMockPublisher(t)

	order, err := domain.CreateOrder("Alice", "Widget", 1)
	require.NoError(t, err)
	order.ClearEvents()

	mockRepo.EXPECT().FindByID(mock.Anything, order.ID).Return(order, nil).Once()
	mockRepo.EXPECT().Save(mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil).Times(2)
	mockPublisher.EXPECT().Publish(mock.Anything, mock.Anything).Return(nil).Once()

	handlers := newEventHandlers(mockRepo, mockPublisher, noopProcessor())

	event := events.NewEvent(order.ID, events.OrderCreatedTopic, domain.OrderCreatedData{OrderID: order.ID})

	err = handlers.Handle(context.Background(), event)

	assert.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)
}

func TestOrderEventHandlers_FallsBackToAggregateID(t *testing.T) {
	mockRepo := mocks.NewMockOrderRepository(t)
	mockPublisher := mocks.NewMockPublisher(t)

	order, err := domain.CreateOrder("Alice", "Widget", 1)
	require.NoError(t, err)
	order.ClearEvents()

	mockRepo.EXPECT().FindByID(mock.Anything, order.ID).Return(order, nil).Once()
	mockRepo.EXPECT().Save(mock.Anything, mock.AnythingOfType("*domain.Order")).Return(nil).Times(2)
	mockPublisher.EXPECT().Publish(mock.Anything, mock.Anything).Return(nil).Once()

	handlers := newEventHandlers(mockRepo, mockPublisher, noopProcessor())

	// Empty payload; the aggregate ID carries the order identity
	event := events.NewEvent(order.ID, events.OrderCreatedTopic, domain.OrderCreatedData{})

	err = handlers.Handle(context.Background(), event)

	assert.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)
}

func TestOrderEventHandlers_UnknownTopicIgnored(t *testing.T) {
	mockRepo := mocks.NewMockOrderRepository(t)
	mockPublisher := mocks.NewMockPublisher(t)

	handlers := newEventHandlers(mockRepo, mockPublisher, noopProcessor())

	event := events.NewEvent(models.GenerateUUID(), events.Topic("payment.settled"), nil)

	err := handlers.Handle(context.Background(), event)

	assert.NoError(t, err)
	mockRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestOrderEventHandlers_ProcessingFailureIsSwallowed(t *testing.T) {
	mockRepo := mocks.NewMockOrderRepository(t)
	mockPublisher := mocks.NewMockPublisher(t)

	orderID := models.GenerateUUID()

	// The order never existed; the saga fails and compensation finds nothing
	mockRepo.EXPECT().FindByID(mock.Anything, orderID).Return(nil, nil).Times(2)

	handlers := newEventHandlers(mockRepo, mockPublisher, noopProcessor())

	event := events.NewEvent(orderID, events.OrderCreatedTopic, domain.OrderCreatedData{OrderID: orderID})

	err := handlers.Handle(context.Background(), event)

	// The message must still be acknowledged
	assert.NoError(t, err)
}

func TestOrderEventHandlers_MalformedPayloadIsAcked(t *testing.T) {
	mockRepo := mocks.NewMockOrderRepository(t)
	mockPublisher := mocks.NewMockPublisher(t)

	handlers := newEventHandlers(mockRepo, mockPublisher, noopProcessor())

	event := events.NewEvent("", events.OrderCreatedTopic, []byte("{not json"))

	err := handlers.Handle(context.Background(), event)

	assert.NoError(t, err)
	mockRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}
