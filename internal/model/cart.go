package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartStatusPending marks a cart that is still mutable. A cart never holds
// any other status; checkout creates a separate order row instead of
// transitioning the cart.
const CartStatusPending = "PENDING"

// Cart is a shopper's unconfirmed order aggregate. At most one pending cart
// per user exists at the storage layer; duplicates from pre-index data are
// healed by consolidation.
type Cart struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    string    `json:"userId" db:"user_id"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// CartItem binds a product to a quantity and an add-time price snapshot
// within one cart. There is at most one CartItem per (cart, product) pair.
type CartItem struct {
	ID        uuid.UUID       `json:"-" db:"id"`
	CartID    uuid.UUID       `json:"-" db:"cart_id"`
	ProductID string          `json:"productId" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice" db:"unit_price"`
}

// CartSummary is the result of any cart read or mutation: the full item set
// plus derived totals.
type CartSummary struct {
	CartID     uuid.UUID       `json:"cartId"`
	UserID     string          `json:"userId"`
	Items      []CartItem      `json:"items"`
	TotalItems int             `json:"totalItems"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// Totals recomputes TotalItems and TotalPrice from Items.
func (s *CartSummary) Totals() {
	s.TotalItems = 0
	s.TotalPrice = decimal.Zero
	for _, item := range s.Items {
		s.TotalItems += item.Quantity
		s.TotalPrice = s.TotalPrice.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
}

// AddItemRequest is the payload for adding a single product to the cart.
type AddItemRequest struct {
	ProductID string `json:"productId"`
}

// SetQuantityRequest is the payload for setting a line's quantity directly.
// A non-positive quantity removes the line.
type SetQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// BatchRequest applies one cart operation per product ID in a single
// transaction, with per-entry outcomes.
type BatchRequest struct {
	Operation  string   `json:"operation"` // "add" or "remove"
	ProductIDs []string `json:"productIds"`
}

// Batch operation names accepted by BatchRequest.
const (
	BatchOpAdd    = "add"
	BatchOpRemove = "remove"
)

// BatchEntryResult reports the outcome of one entry in a batch operation.
// A failed entry carries the error code and message; siblings are unaffected.
type BatchEntryResult struct {
	ProductID string `json:"productId"`
	Status    string `json:"status"` // "ok" or "error"
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Batch entry statuses.
const (
	BatchStatusOK    = "ok"
	BatchStatusError = "error"
)

// BatchResponse is the outcome of a batch mutation: per-entry results and
// the cart totals after the committed entries.
type BatchResponse struct {
	Results []BatchEntryResult `json:"results"`
	Cart    *CartSummary       `json:"cart"`
}

// GuestCartItem is one line of a client-held guest cart submitted for merge
// at sign-in.
type GuestCartItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// MergeRequest carries the guest cart contents to merge into the signed-in
// user's server cart.
type MergeRequest struct {
	Items []GuestCartItem `json:"items"`
}
