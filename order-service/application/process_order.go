package application

import (
	"context"
	"log"
	"time"

	"github.com/orderhub/order-system/order-service/domain"
	"github.com/orderhub/order-system/shared/events"
	"github.com/orderhub/order-system/shared/models"
	"github.com/orderhub/order-system/shared/telemetry"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
)

// ProcessOrderCommand carries the order identifier consumed from the queue
type ProcessOrderCommand struct {
	OrderID models.ID `json:"order_id"`
}

// ProcessOrder is the saga processor: it advances one order through the
// status state machine and compensates on any failure. Each transition is a
// whole-record write made conditional on the record's stored version, so a
// redelivered or concurrently delivered identifier loses the version race
// instead of overwriting a newer state.
type ProcessOrder struct {
	orderRepository domain.OrderRepository
	eventPublisher  events.Publisher
	processor       Processor
}

// NewProcessOrder creates a new ProcessOrder use case
func NewProcessOrder(
	orderRepository domain.OrderRepository,
	eventPublisher events.Publisher,
	processor Processor,
) *ProcessOrder {
	return &ProcessOrder{
		orderRepository: orderRepository,
		eventPublisher:  eventPublisher,
		processor:       processor,
	}
}

// Execute processes one delivered order identifier. Any failure during the
// steps triggers compensation and is returned to the caller; the event
// handler above this use case swallows the error so the message is always
// acknowledged and redelivery stays governed by the queue TTL alone.
func (uc *ProcessOrder) Execute(ctx context.Context, cmd *ProcessOrderCommand) error {
	if cmd.OrderID.String() == "" {
		return errors.New("order ID is required")
	}

	order, err := uc.orderRepository.FindByID(ctx, cmd.OrderID)
	if err != nil {
		uc.compensate(ctx, cmd.OrderID, err.Error())
		return errors.Wrap(err, "failed to find order")
	}

	if order == nil {
		uc.compensate(ctx, cmd.OrderID, domain.ErrOrderNotFound.Error())
		return errors.Wrapf(domain.ErrOrderNotFound, "order %s", cmd.OrderID)
	}

	// Redelivery of an already settled order is a no-op
	if order.IsTerminal() {
		return nil
	}

	if err := uc.transition(ctx, order, (*domain.Order).Process); err != nil {
		uc.compensate(ctx, cmd.OrderID, err.Error())
		return errors.Wrap(err, "failed to start processing")
	}

	if err := uc.doWork(ctx, order); err != nil {
		uc.compensate(ctx, cmd.OrderID, err.Error())
		return errors.Wrap(err, "order processing failed")
	}

	if err := uc.transition(ctx, order, (*domain.Order).Complete); err != nil {
		uc.compensate(ctx, cmd.OrderID, err.Error())
		return errors.Wrap(err, "failed to complete order")
	}

	telemetry.RecordCounter(ctx, "orders_processed_total", "Orders settled by the saga processor", 1,
		attribute.String("outcome", "completed"),
	)

	return nil
}

// doWork runs the business processing step with an explicit timer around it.
// No store lock is held while the work blocks: the repository is touched only
// by the bracketing transitions.
func (uc *ProcessOrder) doWork(ctx context.Context, order *domain.Order) error {
	start := time.Now()
	err := uc.processor.Process(ctx, order)
	duration := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	telemetry.RecordHistogram(ctx, "order_processing_duration_seconds", "Duration of the order processing step", duration.Seconds(),
		attribute.String("outcome", outcome),
	)

	return err
}

// transition applies a state-machine step and persists it, then publishes the
// events the step recorded
func (uc *ProcessOrder) transition(ctx context.Context, order *domain.Order, step func(*domain.Order) error) error {
	if err := step(order); err != nil {
		return err
	}

	if err := uc.orderRepository.Save(ctx, order); err != nil {
		return err
	}

	if len(order.Events()) > 0 {
		if err := uc.eventPublisher.Publish(ctx, order.Events()...); err != nil {
			// The transition is durable; losing an outcome event is logged, not fatal
			log.Printf("failed to publish events for order %s: %v", order.ID, err)
		}
		order.ClearEvents()
	}

	return nil
}

// compensate rolls the order back to (FAILED, ROLLBACK). Best-effort: when
// the order cannot be found, or the rollback write loses to a concurrent
// transition, the failure is only logged.
func (uc *ProcessOrder) compensate(ctx context.Context, orderID models.ID, reason string) {
	order, err := uc.orderRepository.FindByID(ctx, orderID)
	if err != nil {
		log.Printf("compensation lookup failed for order %s: %v", orderID, err)
		return
	}

	if order == nil {
		log.Printf("compensation skipped, order %s no longer exists", orderID)
		return
	}

	if order.IsTerminal() {
		return
	}

	if err := order.Fail(reason); err != nil {
		log.Printf("compensation rejected for order %s: %v", orderID, err)
		return
	}

	if err := uc.orderRepository.Save(ctx, order); err != nil {
		log.Printf("compensation write failed for order %s: %v", orderID, err)
		return
	}

	if err := uc.eventPublisher.Publish(ctx, order.Events()...); err != nil {
		log.Printf("failed to publish failure event for order %s: %v", orderID, err)
	}

	order.ClearEvents()

	telemetry.RecordCounter(ctx, "orders_processed_total", "Orders settled by the saga processor", 1,
		attribute.String("outcome", "failed"),
	)
}
