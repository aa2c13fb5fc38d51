package router

import (
	"net/http"
	"strings"

	"shopkart/internal/handler"
	"shopkart/internal/metrics"
	"shopkart/internal/middleware"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// New creates a new HTTP router with all routes and middleware configured.
func New(
	productHandler *handler.ProductHandler,
	cartHandler *handler.CartHandler,
	checkoutHandler *handler.CheckoutHandler,
	m *metrics.Metrics,
	registry *prometheus.Registry,
	logger zerolog.Logger,
) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoint (no identity required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy"}`))
	})

	mux.Handle("/metrics", metrics.Handler(registry))

	// Product handler function
	productRouteHandler := func(w http.ResponseWriter, r *http.Request) {
		// Check if this is a request for a specific product ID
		if r.URL.Path != "/api/products" && r.URL.Path != "/api/products/" {
			productHandler.GetByID(w, r)
			return
		}
		productHandler.GetAll(w, r)
	}

	// Register product routes (both with and without trailing slash)
	mux.HandleFunc("/api/products", productRouteHandler)
	mux.HandleFunc("/api/products/", productRouteHandler)

	// Cart handler function
	cartRouteHandler := func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		switch {
		case path == "/api/cart" || path == "/api/cart/":
			if r.Method != http.MethodGet {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			cartHandler.Get(w, r)

		case path == "/api/cart/items" || path == "/api/cart/items/":
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			cartHandler.AddItem(w, r)

		case path == "/api/cart/items:batch":
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			cartHandler.Batch(w, r)

		case path == "/api/cart/consolidate":
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			cartHandler.Consolidate(w, r)

		case path == "/api/cart/merge":
			if r.Method != http.MethodPost {
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
				return
			}
			cartHandler.Merge(w, r)

		case strings.HasPrefix(path, "/api/cart/items/"):
			switch r.Method {
			case http.MethodPut:
				cartHandler.UpdateItem(w, r)
			case http.MethodDelete:
				cartHandler.RemoveItem(w, r)
			default:
				http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			}

		default:
			http.Error(w, "not found", http.StatusNotFound)
		}
	}

	mux.HandleFunc("/api/cart", cartRouteHandler)
	mux.HandleFunc("/api/cart/", cartRouteHandler)

	// Checkout routes
	mux.HandleFunc("/api/checkout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		checkoutHandler.Checkout(w, r)
	})
	mux.HandleFunc("/api/checkout/buy-now", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		checkoutHandler.BuyNow(w, r)
	})
	mux.HandleFunc("/api/checkout/intent", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		checkoutHandler.CreateIntent(w, r)
	})

	// Order lookup
	mux.HandleFunc("/api/orders/", checkoutHandler.GetOrder)

	// Apply middleware in order: Recovery -> Logging -> Metrics -> CORS -> Identity
	var h http.Handler = mux
	h = middleware.Identity(logger)(h)
	h = middleware.CORS(h)
	h = middleware.Metrics(m)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.Recovery(logger)(h)

	return h
}
