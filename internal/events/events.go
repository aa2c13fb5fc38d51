package events

import (
	"time"

	"shopkart/internal/model"
)

// CartUpdatedEvent is broadcast after any committed cart mutation so that
// connected clients can re-synchronise their local views.
type CartUpdatedEvent struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	CartID     string    `json:"cart_id"`
	Operation  string    `json:"operation"`
	TotalItems int       `json:"total_items"`
	TotalPrice string    `json:"total_price"`
	Timestamp  time.Time `json:"timestamp"`
}

// OrderConfirmedEvent is broadcast once per checkout transition.
type OrderConfirmedEvent struct {
	EventID     string            `json:"event_id"`
	OrderNumber string            `json:"order_number"`
	UserID      string            `json:"user_id"`
	Status      string            `json:"status"`
	Total       string            `json:"total"`
	Items       []model.OrderItem `json:"items"`
	Timestamp   time.Time         `json:"timestamp"`
}
