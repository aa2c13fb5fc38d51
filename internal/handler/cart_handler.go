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

// CartHandler handles cart mutation and reconciliation HTTP requests.
type CartHandler struct {
	service service.CartService
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewCartHandler creates a new cart handler.
func NewCartHandler(service service.CartService, m *metrics.Metrics, logger zerolog.Logger) *CartHandler {
	return &CartHandler{
		service: service,
		metrics: m,
		logger:  logger.With().Str("handler", "cart").Logger(),
	}
}

// Get handles GET /api/cart requests.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	summary, err := h.service.GetCart(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// AddItem handles POST /api/cart/items requests.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req model.AddItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "productId is required", h.logger)
		return
	}

	summary, err := h.service.Add(r.Context(), userID, req.ProductID)
	h.countMutation("add", err)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// UpdateItem handles PUT /api/cart/items/{productId} requests (set quantity).
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	productID := itemProductID(r)
	if productID == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "product ID is required", h.logger)
		return
	}

	var req model.SetQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	summary, err := h.service.SetQuantity(r.Context(), userID, productID, req.Quantity)
	h.countMutation("set_quantity", err)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// RemoveItem handles DELETE /api/cart/items/{productId} requests.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	productID := itemProductID(r)
	if productID == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "product ID is required", h.logger)
		return
	}

	summary, err := h.service.Remove(r.Context(), userID, productID)
	h.countMutation("remove", err)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Batch handles POST /api/cart/items:batch requests.
func (h *CartHandler) Batch(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req model.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}
	if req.Operation != model.BatchOpAdd && req.Operation != model.BatchOpRemove {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "operation must be add or remove", h.logger)
		return
	}

	resp, err := h.service.Batch(r.Context(), userID, &req)
	h.countMutation("batch_"+req.Operation, err)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Consolidate handles POST /api/cart/consolidate requests.
func (h *CartHandler) Consolidate(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	summary, err := h.service.Consolidate(r.Context(), userID)
	h.countMutation("consolidate", err)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Merge handles POST /api/cart/merge requests (guest cart sign-in merge).
func (h *CartHandler) Merge(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	var req model.MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "invalid request body", h.logger)
		return
	}

	resp, err := h.service.MergeGuestCart(r.Context(), userID, req.Items)
	h.countMutation("guest_merge", err)
	if err != nil {
		writeDomainError(w, err, h.logger)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// requireUser resolves the authenticated user or rejects the request.
func (h *CartHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		writeDomainError(w, model.ErrNotAuthenticated, h.logger)
		return "", false
	}
	return userID, true
}

// countMutation records a cart mutation outcome.
func (h *CartHandler) countMutation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	h.metrics.CartMutations.WithLabelValues(operation, outcome).Inc()
}

// itemProductID extracts the product ID from /api/cart/items/{productId}.
func itemProductID(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/api/cart/items/")
}
