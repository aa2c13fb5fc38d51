package service

import (
	"context"

	"shopkart/internal/model"
	"shopkart/internal/payment"
)

// ProductService defines catalogue lookup operations.
type ProductService interface {
	// GetAll retrieves all products with pagination.
	GetAll(ctx context.Context, limit, offset int) ([]model.Product, error)

	// GetByID retrieves a single product by ID. Returns nil when absent.
	GetByID(ctx context.Context, id string) (*model.Product, error)
}

// CartService defines the mutation and reconciliation operations on a
// user's pending cart. Every mutation runs as one database transaction and
// returns the cart's updated items and totals.
type CartService interface {
	// GetCart returns the user's pending cart summary. An absent cart is an
	// empty summary, not an error.
	GetCart(ctx context.Context, userID string) (*model.CartSummary, error)

	// Add puts one unit of the product into the cart, creating the cart
	// and/or the line as needed. Re-adding an existing product increments
	// its line instead of creating a duplicate.
	Add(ctx context.Context, userID, productID string) (*model.CartSummary, error)

	// Remove deletes the product's whole line from the cart.
	Remove(ctx context.Context, userID, productID string) (*model.CartSummary, error)

	// SetQuantity sets the line's quantity directly. A non-positive
	// quantity behaves as Remove.
	SetQuantity(ctx context.Context, userID, productID string, quantity int) (*model.CartSummary, error)

	// Batch applies one add or remove per product ID in a single
	// transaction, reporting per-entry outcomes; a failed entry does not
	// abort its siblings.
	Batch(ctx context.Context, userID string, req *model.BatchRequest) (*model.BatchResponse, error)

	// Consolidate merges all of the user's pending carts into the oldest
	// one. Idempotent; a single (or absent) cart is a no-op.
	Consolidate(ctx context.Context, userID string) (*model.CartSummary, error)

	// MergeGuestCart folds a client-held guest cart into the user's server
	// cart with quantity-aware adds, reporting per-entry outcomes.
	MergeGuestCart(ctx context.Context, userID string, items []model.GuestCartItem) (*model.BatchResponse, error)
}

// CheckoutService converts carts (or ad-hoc item lists) into immutable
// confirmed orders.
type CheckoutService interface {
	// Checkout confirms the user's pending cart into an order. The pending
	// cart is left in place; callers clear their own cart representation.
	Checkout(ctx context.Context, userID string, req *model.CheckoutRequest) (*model.OrderResponse, error)

	// BuyNow confirms an ad-hoc item list directly, bypassing the cart.
	BuyNow(ctx context.Context, userID string, req *model.BuyNowRequest) (*model.OrderResponse, error)

	// CreateIntent registers the pending cart's total with the payment
	// gateway and returns the intent handle for the client to complete.
	CreateIntent(ctx context.Context, userID string) (*payment.Intent, error)

	// GetOrder retrieves a confirmed order by its number with product
	// display data. Returns nil when absent.
	GetOrder(ctx context.Context, number string) (*model.OrderResponse, error)
}
