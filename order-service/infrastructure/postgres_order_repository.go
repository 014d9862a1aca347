package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/orderhub/order-system/order-service/domain"
	"github.com/orderhub/order-system/shared/models"
	"github.com/pkg/errors"
)

// PostgresOrderRepository implements domain.OrderRepository using PostgreSQL
type PostgresOrderRepository struct {
	db *sqlx.DB
}

// NewPostgresOrderRepository creates a new PostgresOrderRepository
func NewPostgresOrderRepository(db *sqlx.DB) *PostgresOrderRepository {
	return &PostgresOrderRepository{db: db}
}

// postgresOrder represents an order row
type postgresOrder struct {
	OrderID      string    `db:"order_id"`
	CustomerName string    `db:"customer_name"`
	ProductName  string    `db:"product_name"`
	Quantity     int64     `db:"quantity"`
	Status       string    `db:"status"`
	SagaStatus   string    `db:"saga_status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	Version      int       `db:"version"`
}

// Save writes the whole record. A fresh aggregate (version 1) is inserted;
// anything else is an update conditional on the previous version, so a stale
// concurrent transition affects zero rows and surfaces ErrStaleOrder instead
// of overwriting newer state.
func (r *PostgresOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	if order.Version.Value == 1 {
		return r.insertOrder(ctx, order)
	}
	return r.updateOrder(ctx, order)
}

func (r *PostgresOrderRepository) insertOrder(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (
			order_id, customer_name, product_name, quantity,
			status, saga_status, created_at, updated_at, version
		) VALUES (
			:order_id, :customer_name, :product_name, :quantity,
			:status, :saga_status, :created_at, :updated_at, :version
		)`

	_, err := r.db.NamedExecContext(ctx, query, r.toPostgres(order))
	if err != nil {
		return errors.Wrap(err, "failed to insert order")
	}

	return nil
}

func (r *PostgresOrderRepository) updateOrder(ctx context.Context, order *domain.Order) error {
	query := `
		UPDATE orders
		SET customer_name = :customer_name, product_name = :product_name,
			quantity = :quantity, status = :status, saga_status = :saga_status,
			updated_at = :updated_at, version = :version
		WHERE order_id = :order_id AND version = :old_version`

	pgOrder := r.toPostgres(order)
	result, err := r.db.NamedExecContext(ctx, query, map[string]interface{}{
		"order_id":      pgOrder.OrderID,
		"customer_name": pgOrder.CustomerName,
		"product_name":  pgOrder.ProductName,
		"quantity":      pgOrder.Quantity,
		"status":        pgOrder.Status,
		"saga_status":   pgOrder.SagaStatus,
		"updated_at":    pgOrder.UpdatedAt,
		"version":       pgOrder.Version,
		"old_version":   pgOrder.Version - 1,
	})
	if err != nil {
		return errors.Wrap(err, "failed to update order")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read update result")
	}

	if affected == 0 {
		return errors.Wrapf(domain.ErrStaleOrder, "order %s version %d", order.ID, order.Version.Value)
	}

	return nil
}

// FindByID finds an order by ID; returns (nil, nil) when absent
func (r *PostgresOrderRepository) FindByID(ctx context.Context, id models.ID) (*domain.Order, error) {
	query := `
		SELECT order_id, customer_name, product_name, quantity,
			   status, saga_status, created_at, updated_at, version
		FROM orders
		WHERE order_id = $1`

	var pgOrder postgresOrder
	err := r.db.GetContext(ctx, &pgOrder, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find order")
	}

	return r.toDomain(&pgOrder), nil
}

// FindByStatus returns projections of all orders with the given status
func (r *PostgresOrderRepository) FindByStatus(ctx context.Context, status domain.OrderStatus) ([]*domain.OrderProjection, error) {
	query := `
		SELECT order_id, customer_name, product_name, status
		FROM orders
		WHERE status = $1
		ORDER BY created_at DESC`

	var projections []*domain.OrderProjection
	err := r.db.SelectContext(ctx, &projections, query, string(status))
	if err != nil {
		return nil, errors.Wrap(err, "failed to find orders by status")
	}

	return projections, nil
}

// FindStatusByID returns the status projection for one order; (nil, nil)
// when absent
func (r *PostgresOrderRepository) FindStatusByID(ctx context.Context, id models.ID) (*domain.OrderProjection, error) {
	query := `
		SELECT order_id, customer_name, product_name, status
		FROM orders
		WHERE order_id = $1`

	var projection domain.OrderProjection
	err := r.db.GetContext(ctx, &projection, query, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find order status")
	}

	return &projection, nil
}

func (r *PostgresOrderRepository) toPostgres(order *domain.Order) *postgresOrder {
	return &postgresOrder{
		OrderID:      order.ID.String(),
		CustomerName: order.CustomerName,
		ProductName:  order.ProductName,
		Quantity:     order.Quantity,
		Status:       string(order.Status),
		SagaStatus:   string(order.SagaStatus),
		CreatedAt:    order.Timestamps.CreatedAt,
		UpdatedAt:    order.Timestamps.UpdatedAt,
		Version:      order.Version.Value,
	}
}

func (r *PostgresOrderRepository) toDomain(pgOrder *postgresOrder) *domain.Order {
	return &domain.Order{
		ID:           models.ID(pgOrder.OrderID),
		CustomerName: pgOrder.CustomerName,
		ProductName:  pgOrder.ProductName,
		Quantity:     pgOrder.Quantity,
		Status:       domain.OrderStatus(pgOrder.Status),
		SagaStatus:   domain.SagaStatus(pgOrder.SagaStatus),
		Timestamps: models.Timestamps{
			CreatedAt: pgOrder.CreatedAt,
			UpdatedAt: pgOrder.UpdatedAt,
		},
		Version: models.Version{Value: pgOrder.Version},
	}
}
