package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/orderly/internal/api/middleware"
	"github.com/example/orderly/internal/auth"
)

type RouterConfig struct {
	Handlers   *Handlers
	JWTService *auth.JWTService
	Logger     *zap.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	h := cfg.Handlers

	// Cart
	mux.HandleFunc("POST /api/cart/{userId}/items", h.AddCartItem)
	mux.HandleFunc("GET /api/cart/{userId}", h.GetCart)
	mux.HandleFunc("PUT /api/cart/{userId}/items/{productId}", h.UpdateCartItem)
	mux.HandleFunc("DELETE /api/cart/{userId}/items/{productId}", h.RemoveCartItem)
	mux.HandleFunc("DELETE /api/cart/{userId}", h.ClearCart)

	// Orders
	mux.HandleFunc("POST /api/orders", h.CreateOrder)
	mux.HandleFunc("GET /api/orders/user/{userId}", h.ListUserOrders)
	mux.HandleFunc("GET /api/orders/{orderId}", h.GetOrder)

	mux.HandleFunc("GET /api/ping", h.Ping)
	mux.Handle("GET /metrics", promhttp.Handler())

	var handler http.Handler = mux
	if cfg.JWTService != nil {
		handler = middleware.OptionalAuth(cfg.JWTService)(handler)
	}
	return withLogging(handler, cfg.Logger)
}

func withLogging(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path))
		next.ServeHTTP(w, r)
	})
}
