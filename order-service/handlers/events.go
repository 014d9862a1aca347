package handlers

import (
	"context"
	"log"

	"github.com/orderhub/order-system/order-service/application"
	"github.com/orderhub/order-system/order-service/domain"
	"github.com/orderhub/order-system/shared/events"
)

// OrderEventHandlers dispatches queue deliveries to the saga processor.
// Processing failures are logged and swallowed so the message is always
// acknowledged: redelivery is governed by the queue TTL, never by a negative
// acknowledgement from here.
type OrderEventHandlers struct {
	processOrder *application.ProcessOrder
}

// NewOrderEventHandlers creates new order event handlers
func NewOrderEventHandlers(processOrder *application.ProcessOrder) *OrderEventHandlers {
	return &OrderEventHandlers{processOrder: processOrder}
}

// HandlerID returns the unique identifier for this event handler
func (h *OrderEventHandlers) HandlerID() string {
	return "order-service-event-handler"
}

// Handle implements the events.EventHandler interface
func (h *OrderEventHandlers) Handle(ctx context.Context, event *events.Event) error {
	switch event.Topic {
	case events.OrderCreatedTopic:
		return h.HandleOrderCreated(ctx, event)
	default:
		// Not for this consumer
		return nil
	}
}

// HandleOrderCreated consumes one order identifier and runs the saga
func (h *OrderEventHandlers) HandleOrderCreated(ctx context.Context, event *events.Event) error {
	var data domain.OrderCreatedData
	if err := event.UnmarshalPayload(&data); err != nil {
		log.Printf("failed to parse order created payload: %v", err)
		return nil
	}

	orderID := data.OrderID
	if orderID == "" {
		orderID = event.AggregateID
	}

	cmd := &application.ProcessOrderCommand{OrderID: orderID}

	if err := h.processOrder.Execute(ctx, cmd); err != nil {
		// Compensation already ran inside the use case; ack the message
		log.Printf("failed to process order %s: %v", orderID, err)
		return nil
	}

	return nil
}

var _ events.EventHandler = (*OrderEventHandlers)(nil)
