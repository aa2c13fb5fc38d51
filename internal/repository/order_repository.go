package repository

import (
	"context"
	"fmt"

	"shopkart/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// orderRepository implements the OrderRepository interface using PostgreSQL.
type orderRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool *pgxpool.Pool, logger zerolog.Logger) OrderRepository {
	return &orderRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "order").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *orderRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// LatestNumber returns the most recently created order's number, or "" when
// no order exists yet. Read within the checkout transaction; there is no
// reservation step, so the unique column is what catches collisions.
func (r *orderRepository) LatestNumber(ctx context.Context, tx pgx.Tx) (string, error) {
	query := `
		SELECT order_number
		FROM orders
		ORDER BY created_at DESC, order_number DESC
		LIMIT 1
	`

	var number string
	err := tx.QueryRow(ctx, query).Scan(&number)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", nil
		}
		r.logger.Error().Err(err).Msg("failed to query latest order number")
		return "", fmt.Errorf("failed to query latest order number: %w", err)
	}

	return number, nil
}

// CreateOrder inserts a confirmed order within the provided transaction.
func (r *orderRepository) CreateOrder(ctx context.Context, tx pgx.Tx, order *model.Order) error {
	query := `
		INSERT INTO orders (
			id, order_number, user_id, status, payment_status, payment_ref,
			ship_name, ship_address, ship_city, ship_postal,
			subtotal, shipping_fee, tax, total, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := tx.Exec(ctx, query,
		order.ID, order.Number, order.UserID, order.Status, order.PaymentStatus, order.PaymentRef,
		order.Shipping.Name, order.Shipping.Address, order.Shipping.City, order.Shipping.PostalCode,
		order.Subtotal, order.ShippingFee, order.Tax, order.Total, order.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			r.logger.Warn().
				Str("order_number", order.Number).
				Msg("order number collision")
			return model.ErrOrderConflict
		}
		r.logger.Error().
			Err(err).
			Str("order_id", order.ID.String()).
			Msg("failed to create order")
		return fmt.Errorf("failed to create order: %w", err)
	}

	r.logger.Debug().
		Str("order_id", order.ID.String()).
		Str("order_number", order.Number).
		Msg("order created successfully")

	return nil
}

// CreateOrderItems inserts multiple order items within the provided transaction.
func (r *orderRepository) CreateOrderItems(ctx context.Context, tx pgx.Tx, items []model.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	query := `
		INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
	`

	batch := &pgx.Batch{}
	for _, item := range items {
		batch.Queue(query, item.ID, item.OrderID, item.ProductID, item.Quantity, item.UnitPrice)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < len(items); i++ {
		_, err := results.Exec()
		if err != nil {
			r.logger.Error().
				Err(err).
				Str("order_id", items[i].OrderID.String()).
				Str("product_id", items[i].ProductID).
				Msg("failed to create order item")
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	r.logger.Debug().
		Int("count", len(items)).
		Msg("order items created successfully")

	return nil
}

// GetByNumber retrieves an order by its number along with its items.
func (r *orderRepository) GetByNumber(ctx context.Context, number string) (*model.Order, []model.OrderItem, error) {
	orderQuery := `
		SELECT id, order_number, user_id, status, payment_status, payment_ref,
		       ship_name, ship_address, ship_city, ship_postal,
		       subtotal, shipping_fee, tax, total, created_at
		FROM orders
		WHERE order_number = $1
	`

	var order model.Order
	err := r.pool.QueryRow(ctx, orderQuery, number).Scan(
		&order.ID, &order.Number, &order.UserID, &order.Status, &order.PaymentStatus, &order.PaymentRef,
		&order.Shipping.Name, &order.Shipping.Address, &order.Shipping.City, &order.Shipping.PostalCode,
		&order.Subtotal, &order.ShippingFee, &order.Tax, &order.Total, &order.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().Str("order_number", number).Msg("order not found")
			return nil, nil, nil
		}
		r.logger.Error().Err(err).Str("order_number", number).Msg("failed to query order")
		return nil, nil, fmt.Errorf("failed to query order: %w", err)
	}

	itemsQuery := `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, itemsQuery, order.ID)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("order_number", number).
			Msg("failed to query order items")
		return nil, nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var item model.OrderItem
		err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice)
		if err != nil {
			r.logger.Error().Err(err).Msg("failed to scan order item row")
			return nil, nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating order item rows")
		return nil, nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return &order, items, nil
}
