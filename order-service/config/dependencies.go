package config

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/orderhub/order-system/order-service/application"
	"github.com/orderhub/order-system/order-service/handlers"
	"github.com/orderhub/order-system/order-service/infrastructure"
	"github.com/orderhub/order-system/shared/events"
	sharedinfra "github.com/orderhub/order-system/shared/infrastructure"
)

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Repositories
	OrderRepository *infrastructure.PostgresOrderRepository

	// Use Cases
	CreateOrder        *application.CreateOrder
	ProcessOrder       *application.ProcessOrder
	GetOrderStatus     *application.GetOrderStatus
	ListOrdersByStatus *application.ListOrdersByStatus

	// HTTP Handlers
	OrderHandlers *handlers.OrderHandlers

	// Event Handlers
	OrderEventHandlers *handlers.OrderEventHandlers

	// Infrastructure
	EventPublisher  *sharedinfra.SNSPublisherAdapter
	EventSubscriber *sharedinfra.SQSSubscriberAdapter
}

func BuildDependencies(config *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	deps.DB = db

	eventPublisher, err := sharedinfra.NewSNSPublisherAdapter(config.Queue.ExchangeArn, config.AWS.EndpointSNS)
	if err != nil {
		return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
	}
	deps.EventPublisher = eventPublisher

	eventSubscriber, err := sharedinfra.NewSQSSubscriberAdapter(
		config.Queue.QueueURL,
		config.AWS.EndpointSQS,
		sharedinfra.WithWorkerBounds(int32(config.Queue.MinConsumers), int32(config.Queue.MaxConsumers)),
		sharedinfra.WithDeadLetterQueue(
			config.Queue.DLQURL,
			config.Queue.DLQRoutingKey,
			time.Duration(config.Queue.MessageTTLMs)*time.Millisecond,
		),
		sharedinfra.WithTopicPattern(events.Topic(config.Queue.RoutingKey)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS subscriber: %w", err)
	}
	deps.EventSubscriber = eventSubscriber

	deps.OrderRepository = infrastructure.NewPostgresOrderRepository(db)

	processor := application.NewSimulatedProcessor(time.Duration(config.Processing.DelayMs) * time.Millisecond)

	deps.CreateOrder = application.NewCreateOrder(deps.OrderRepository, eventPublisher)
	deps.ProcessOrder = application.NewProcessOrder(deps.OrderRepository, eventPublisher, processor)
	deps.GetOrderStatus = application.NewGetOrderStatus(deps.OrderRepository)
	deps.ListOrdersByStatus = application.NewListOrdersByStatus(deps.OrderRepository)

	deps.OrderHandlers = handlers.NewOrderHandlers(deps.CreateOrder, deps.GetOrderStatus, deps.ListOrdersByStatus)
	deps.OrderEventHandlers = handlers.NewOrderEventHandlers(deps.ProcessOrder)

	return deps, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.EventPublisher != nil {
		if err := d.EventPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event subscriber: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
