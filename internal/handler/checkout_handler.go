package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"shopkart/internal/metrics"
	"shopkart/internal/middleware"
	"shopkart/internal/model"
	"shopkart/internal/service"

	"github.com/rs/zerolog"
)

// CheckoutHandler handles checkout and order HTTP requests.
type CheckoutHandler struct {
	service service.CheckoutService
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewCheckoutHandler creates a new checkout handler.
func NewCheckoutHandler(service service.CheckoutService, m *metrics.Metrics, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		service: service,
		metrics: m,
		logger:  logger.With().Str("handler", "checkout").Logger(),
	}
}

// Checkout handles POST /api/checkout requests.
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req model.CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	order, err := h.service.Checkout(r.Context(), userID, &req)
	h.countCheckout("checkout", err)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// BuyNow handles POST /api/checkout/buy-now requests.
func (h *CheckoutHandler) BuyNow(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req model.BuyNowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	order, err := h.service.BuyNow(r.Context(), userID, &req)
	h.countCheckout("buy_now", err)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, order)
}

// CreateIntent handles POST /api/checkout/intent requests.
func (h *CheckoutHandler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	intent, err := h.service.CreateIntent(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, intent)
}

// GetOrder handles GET /api/orders/{number} requests. Lookups are scoped to
// the caller: another user's order is indistinguishable from a missing one.
func (h *CheckoutHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeInternalError, "method not allowed", h.logger)
		return
	}

	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	number := strings.TrimPrefix(r.URL.Path, "/api/orders/")
	if number == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "order number is required", h.logger)
		return
	}

	order, err := h.service.GetOrder(r.Context(), number)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	if order == nil || order.Order.UserID != userID {
		writeError(w, http.StatusNotFound, model.ErrCodeInternalError, "order not found", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, order)
}

// requireUser resolves the authenticated user or rejects the request.
func (h *CheckoutHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		writeDomainError(w, model.ErrNotAuthenticated, h.logger)
		return "", false
	}
	return userID, true
}

// countCheckout records a checkout outcome.
func (h *CheckoutHandler) countCheckout(flow string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.metrics.Checkouts.WithLabelValues(flow, outcome).Inc()
}
