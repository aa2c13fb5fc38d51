package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a catalogue entry. Price is the live catalogue price;
// line items copy it at add time and never read it again.
type Product struct {
	ID        string          `json:"id" db:"id"`
	Name      string          `json:"name" db:"name"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Category  string          `json:"category" db:"category"`
	CreatedAt time.Time       `json:"createdAt" db:"created_at"`
}
