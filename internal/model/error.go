package model

// ErrorResponse represents a standardised error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Standard error codes for API responses
const (
	ErrCodeInvalidJSON      = "INVALID_JSON"
	ErrCodeNotAuthenticated = "NOT_AUTHENTICATED"
	ErrCodeProductNotFound  = "PRODUCT_NOT_FOUND"
	ErrCodeCartNotFound     = "CART_NOT_FOUND"
	ErrCodeItemNotFound     = "ITEM_NOT_FOUND"
	ErrCodeEmptyCart        = "EMPTY_CART"
	ErrCodeInvalidQuantity  = "INVALID_QUANTITY"
	ErrCodeInvalidSignature = "INVALID_PAYMENT_SIGNATURE"
	ErrCodeOrderConflict    = "ORDER_NUMBER_CONFLICT"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// DomainError is a business-rule failure with a stable code.
type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotAuthenticated = NewDomainError(ErrCodeNotAuthenticated, "Operation requires a signed-in user")
	ErrProductNotFound  = NewDomainError(ErrCodeProductNotFound, "Product not found")
	ErrCartNotFound     = NewDomainError(ErrCodeCartNotFound, "No pending cart exists for this user")
	ErrItemNotFound     = NewDomainError(ErrCodeItemNotFound, "Product is not in the cart")
	ErrEmptyCart        = NewDomainError(ErrCodeEmptyCart, "Cannot check out an empty cart")
	ErrInvalidQuantity  = NewDomainError(ErrCodeInvalidQuantity, "Quantity must be greater than zero")
	ErrInvalidSignature = NewDomainError(ErrCodeInvalidSignature, "Payment signature verification failed")
	ErrOrderConflict    = NewDomainError(ErrCodeOrderConflict, "Order number already taken, retry checkout")
)
