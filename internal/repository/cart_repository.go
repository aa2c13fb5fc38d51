package repository

import (
	"context"
	"errors"
	"fmt"

	"shopkart/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ErrDuplicatePendingCart signals that another request created the user's
// pending cart first. The caller should re-read and use the existing cart.
var ErrDuplicatePendingCart = errors.New("a pending cart already exists for this user")

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique constraint errors.
const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// cartRepository implements the CartRepository interface using PostgreSQL.
type cartRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool *pgxpool.Pool, logger zerolog.Logger) CartRepository {
	return &cartRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "cart").Logger(),
	}
}

// BeginTx starts a new database transaction.
func (r *cartRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

const pendingCartQuery = `
	SELECT id, user_id, status, created_at, updated_at
	FROM carts
	WHERE user_id = $1 AND status = 'PENDING'
	ORDER BY created_at
`

const cartItemsQuery = `
	SELECT id, cart_id, product_id, quantity, unit_price
	FROM cart_items
	WHERE cart_id = $1
	ORDER BY id
`

// FindPending loads the user's pending cart and its items.
func (r *cartRepository) FindPending(ctx context.Context, userID string) (*model.Cart, []model.CartItem, error) {
	var cart model.Cart
	err := r.pool.QueryRow(ctx, pendingCartQuery+" LIMIT 1", userID).Scan(
		&cart.ID, &cart.UserID, &cart.Status, &cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			r.logger.Debug().Str("user_id", userID).Msg("no pending cart")
			return nil, nil, nil
		}
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to query pending cart")
		return nil, nil, fmt.Errorf("failed to query pending cart: %w", err)
	}

	rows, err := r.pool.Query(ctx, cartItemsQuery, cart.ID)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to query cart items")
		return nil, nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items, err := scanCartItems(rows, r.logger)
	if err != nil {
		return nil, nil, err
	}

	return &cart, items, nil
}

// FindPendingTx loads the pending cart with a row lock so concurrent
// mutations on the same cart serialise at the database.
func (r *cartRepository) FindPendingTx(ctx context.Context, tx pgx.Tx, userID string) (*model.Cart, []model.CartItem, error) {
	var cart model.Cart
	err := tx.QueryRow(ctx, pendingCartQuery+" LIMIT 1 FOR UPDATE", userID).Scan(
		&cart.ID, &cart.UserID, &cart.Status, &cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil, nil
		}
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to lock pending cart")
		return nil, nil, fmt.Errorf("failed to lock pending cart: %w", err)
	}

	rows, err := tx.Query(ctx, cartItemsQuery, cart.ID)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to query cart items")
		return nil, nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	items, err := scanCartItems(rows, r.logger)
	if err != nil {
		return nil, nil, err
	}

	return &cart, items, nil
}

// FindAllPendingTx loads every pending cart for the user, oldest first,
// along with each cart's items.
func (r *cartRepository) FindAllPendingTx(ctx context.Context, tx pgx.Tx, userID string) ([]model.Cart, map[uuid.UUID][]model.CartItem, error) {
	rows, err := tx.Query(ctx, pendingCartQuery+" FOR UPDATE", userID)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", userID).Msg("failed to query pending carts")
		return nil, nil, fmt.Errorf("failed to query pending carts: %w", err)
	}

	var carts []model.Cart
	for rows.Next() {
		var cart model.Cart
		if err := rows.Scan(&cart.ID, &cart.UserID, &cart.Status, &cart.CreatedAt, &cart.UpdatedAt); err != nil {
			rows.Close()
			r.logger.Error().Err(err).Msg("failed to scan cart row")
			return nil, nil, fmt.Errorf("failed to scan cart: %w", err)
		}
		carts = append(carts, cart)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating cart rows")
		return nil, nil, fmt.Errorf("error iterating carts: %w", err)
	}

	itemsByCart := make(map[uuid.UUID][]model.CartItem, len(carts))
	for _, cart := range carts {
		itemRows, err := tx.Query(ctx, cartItemsQuery, cart.ID)
		if err != nil {
			r.logger.Error().Err(err).Str("cart_id", cart.ID.String()).Msg("failed to query cart items")
			return nil, nil, fmt.Errorf("failed to query cart items: %w", err)
		}
		items, err := scanCartItems(itemRows, r.logger)
		itemRows.Close()
		if err != nil {
			return nil, nil, err
		}
		itemsByCart[cart.ID] = items
	}

	return carts, itemsByCart, nil
}

// CreatePending inserts a fresh empty pending cart. ON CONFLICT targets the
// partial unique index on pending carts so a lost race is reported without
// aborting the enclosing transaction.
func (r *cartRepository) CreatePending(ctx context.Context, tx pgx.Tx, cart *model.Cart) error {
	query := `
		INSERT INTO carts (id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) WHERE status = 'PENDING' DO NOTHING
	`

	tag, err := tx.Exec(ctx, query, cart.ID, cart.UserID, cart.Status, cart.CreatedAt, cart.UpdatedAt)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", cart.UserID).Msg("failed to create pending cart")
		return fmt.Errorf("failed to create pending cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Debug().Str("user_id", cart.UserID).Msg("pending cart create lost the race")
		return ErrDuplicatePendingCart
	}

	r.logger.Debug().
		Str("cart_id", cart.ID.String()).
		Str("user_id", cart.UserID).
		Msg("pending cart created")

	return nil
}

// InsertItem inserts a new line item.
func (r *cartRepository) InsertItem(ctx context.Context, tx pgx.Tx, item *model.CartItem) error {
	query := `
		INSERT INTO cart_items (id, cart_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := tx.Exec(ctx, query, item.ID, item.CartID, item.ProductID, item.Quantity, item.UnitPrice)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("cart_id", item.CartID.String()).
			Str("product_id", item.ProductID).
			Msg("failed to insert cart item")
		return fmt.Errorf("failed to insert cart item: %w", err)
	}

	return nil
}

// UpdateItemQuantity sets an existing line item's quantity.
func (r *cartRepository) UpdateItemQuantity(ctx context.Context, tx pgx.Tx, itemID uuid.UUID, quantity int) error {
	query := `UPDATE cart_items SET quantity = $2 WHERE id = $1`

	tag, err := tx.Exec(ctx, query, itemID, quantity)
	if err != nil {
		r.logger.Error().Err(err).Str("item_id", itemID.String()).Msg("failed to update item quantity")
		return fmt.Errorf("failed to update item quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cart item %s does not exist", itemID)
	}

	return nil
}

// MoveItem reassigns a line item to another cart.
func (r *cartRepository) MoveItem(ctx context.Context, tx pgx.Tx, itemID, cartID uuid.UUID) error {
	query := `UPDATE cart_items SET cart_id = $2 WHERE id = $1`

	_, err := tx.Exec(ctx, query, itemID, cartID)
	if err != nil {
		r.logger.Error().
			Err(err).
			Str("item_id", itemID.String()).
			Str("cart_id", cartID.String()).
			Msg("failed to move cart item")
		return fmt.Errorf("failed to move cart item: %w", err)
	}

	return nil
}

// DeleteItem removes a line item entirely.
func (r *cartRepository) DeleteItem(ctx context.Context, tx pgx.Tx, itemID uuid.UUID) error {
	query := `DELETE FROM cart_items WHERE id = $1`

	_, err := tx.Exec(ctx, query, itemID)
	if err != nil {
		r.logger.Error().Err(err).Str("item_id", itemID.String()).Msg("failed to delete cart item")
		return fmt.Errorf("failed to delete cart item: %w", err)
	}

	return nil
}

// DeleteCart removes a cart; cart_items cascade with it.
func (r *cartRepository) DeleteCart(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	query := `DELETE FROM carts WHERE id = $1`

	_, err := tx.Exec(ctx, query, cartID)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to delete cart")
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	r.logger.Debug().Str("cart_id", cartID.String()).Msg("cart deleted")

	return nil
}

// TouchCart bumps the cart's updated_at.
func (r *cartRepository) TouchCart(ctx context.Context, tx pgx.Tx, cartID uuid.UUID) error {
	query := `UPDATE carts SET updated_at = NOW() WHERE id = $1`

	_, err := tx.Exec(ctx, query, cartID)
	if err != nil {
		r.logger.Error().Err(err).Str("cart_id", cartID.String()).Msg("failed to touch cart")
		return fmt.Errorf("failed to touch cart: %w", err)
	}

	return nil
}

// scanCartItems collects cart item rows.
func scanCartItems(rows pgx.Rows, logger zerolog.Logger) ([]model.CartItem, error) {
	var items []model.CartItem
	for rows.Next() {
		var item model.CartItem
		err := rows.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.UnitPrice)
		if err != nil {
			logger.Error().Err(err).Msg("failed to scan cart item row")
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		logger.Error().Err(err).Msg("error iterating cart item rows")
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return items, nil
}
