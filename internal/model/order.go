package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order lifecycle statuses. An order is created CONFIRMED and only moves
// forward (or to CANCELLED); it never reverts to a cart.
const (
	OrderStatusConfirmed = "CONFIRMED"
	OrderStatusShipped   = "SHIPPED"
	OrderStatusDelivered = "DELIVERED"
	OrderStatusCancelled = "CANCELLED"
)

// Payment statuses, tracked separately from the order lifecycle.
const (
	PaymentStatusPending = "PENDING"
	PaymentStatusPaid    = "PAID"
	PaymentStatusFailed  = "FAILED"
)

// Order is an immutable-after-creation snapshot of a completed checkout.
// Number is the human-facing identifier produced by the order-number
// generator, distinct from the row key.
type Order struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	Number        string          `json:"orderNumber" db:"order_number"`
	UserID        string          `json:"userId" db:"user_id"`
	Status        string          `json:"status" db:"status"`
	PaymentStatus string          `json:"paymentStatus" db:"payment_status"`
	PaymentRef    string          `json:"paymentRef,omitempty" db:"payment_ref"`
	Shipping      ShippingInfo    `json:"shipping"`
	Subtotal      decimal.Decimal `json:"subtotal" db:"subtotal"`
	ShippingFee   decimal.Decimal `json:"shippingFee" db:"shipping_fee"`
	Tax           decimal.Decimal `json:"tax" db:"tax"`
	Total         decimal.Decimal `json:"total" db:"total"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}

// OrderItem is a copied line snapshot; it shares no rows with cart_items.
type OrderItem struct {
	ID        uuid.UUID       `json:"-" db:"id"`
	OrderID   uuid.UUID       `json:"-" db:"order_id"`
	ProductID string          `json:"productId" db:"product_id"`
	Quantity  int             `json:"quantity" db:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice" db:"unit_price"`
}

// ShippingInfo is the shipping address payload fixed at checkout.
type ShippingInfo struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postalCode"`
}

// PaymentInfo carries the external gateway's references and signature for a
// gateway-mediated checkout. All fields empty means deferred payment.
type PaymentInfo struct {
	OrderRef   string `json:"orderRef"`
	PaymentRef string `json:"paymentRef"`
	Signature  string `json:"signature"`
}

// Deferred reports whether the payment is settled outside the gateway flow.
func (p PaymentInfo) Deferred() bool {
	return p.OrderRef == "" && p.PaymentRef == "" && p.Signature == ""
}

// CheckoutRequest confirms the user's pending cart.
type CheckoutRequest struct {
	Shipping ShippingInfo `json:"shipping"`
	Payment  PaymentInfo  `json:"payment"`
}

// BuyNowItem is one entry of an ad-hoc purchase list.
type BuyNowItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// BuyNowRequest confirms an ad-hoc item list directly, bypassing the cart.
type BuyNowRequest struct {
	Items    []BuyNowItem `json:"items"`
	Shipping ShippingInfo `json:"shipping"`
	Payment  PaymentInfo  `json:"payment"`
}

// OrderResponse is the confirmed order joined with product display data.
type OrderResponse struct {
	Order    Order       `json:"order"`
	Items    []OrderItem `json:"items"`
	Products []Product   `json:"products"`
}
