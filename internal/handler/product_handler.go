package handler

import (
	"net/http"
	"strconv"
	"strings"

	"shopkart/internal/model"
	"shopkart/internal/service"

	"github.com/rs/zerolog"
)

// ProductHandler handles catalogue lookup HTTP requests.
type ProductHandler struct {
	service service.ProductService
	logger  zerolog.Logger
}

// NewProductHandler creates a new product handler.
func NewProductHandler(service service.ProductService, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		service: service,
		logger:  logger.With().Str("handler", "product").Logger(),
	}
}

// GetAll handles GET /api/products requests.
func (h *ProductHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeInternalError, "method not allowed", h.logger)
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	products, err := h.service.GetAll(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to retrieve products", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, products)
}

// GetByID handles GET /api/products/{id} requests.
func (h *ProductHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, model.ErrCodeInternalError, "method not allowed", h.logger)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/products/")
	if id == "" {
		writeError(w, http.StatusBadRequest, model.ErrCodeInvalidJSON, "product ID is required", h.logger)
		return
	}

	product, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to retrieve product", h.logger)
		return
	}

	if product == nil {
		writeError(w, http.StatusNotFound, model.ErrCodeProductNotFound, "product not found", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// queryInt parses an integer query parameter with a default.
func queryInt(r *http.Request, key string, defaultValue int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue >= 0 {
			return intValue
		}
	}
	return defaultValue
}
