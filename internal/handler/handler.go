package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"shopkart/internal/model"

	"github.com/rs/zerolog"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	logger.Error().Str("error", message).Int("status", status).Msg("handler error")
	writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}

// writeDomainError maps a service error onto an HTTP response. Domain
// errors carry their own code and status; anything else is a 500.
func writeDomainError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var domainErr *model.DomainError
	if !errors.As(err, &domainErr) {
		writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, "internal server error", logger)
		return
	}
	writeError(w, domainStatus(domainErr.Code), domainErr.Code, domainErr.Message, logger)
}

// domainStatus maps domain error codes to HTTP status codes.
func domainStatus(code string) int {
	switch code {
	case model.ErrCodeNotAuthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeProductNotFound, model.ErrCodeCartNotFound, model.ErrCodeItemNotFound:
		return http.StatusNotFound
	case model.ErrCodeEmptyCart, model.ErrCodeInvalidQuantity, model.ErrCodeInvalidSignature:
		return http.StatusBadRequest
	case model.ErrCodeOrderConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
