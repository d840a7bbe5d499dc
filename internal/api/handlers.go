package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/orderly/internal/api/middleware"
	"github.com/example/orderly/internal/checkout"
	"github.com/example/orderly/internal/domain/cart"
	"github.com/example/orderly/internal/domain/order"
)

type Handlers struct {
	carts    *cart.Service
	orders   *order.Service
	checkout *checkout.Service
	logger   *zap.Logger
}

func NewHandlers(carts *cart.Service, orders *order.Service, co *checkout.Service, logger *zap.Logger) *Handlers {
	return &Handlers{carts: carts, orders: orders, checkout: co, logger: logger}
}

// Cart handlers

type cartItemRequest struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

func (h *Handlers) AddCartItem(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	var req cartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", CodeValidation)
		return
	}

	item := cart.Item{
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
		Price:       req.Price,
	}
	if err := h.carts.Add(r.Context(), userID, item); err != nil {
		if errors.Is(err, cart.ErrInvalidProduct) || errors.Is(err, cart.ErrInvalidQuantity) {
			respondError(w, http.StatusBadRequest, err.Error(), CodeValidation)
			return
		}
		h.internalError(w, "add cart item", err)
		return
	}

	respondMessage(w, http.StatusOK, "item added to cart", nil)
}

type cartResponse struct {
	Items []cart.Item     `json:"items"`
	Total decimal.Decimal `json:"total"`
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	items, err := h.carts.List(r.Context(), userID)
	if err != nil {
		h.internalError(w, "read cart", err)
		return
	}
	total, err := h.carts.Total(r.Context(), userID)
	if err != nil {
		h.internalError(w, "total cart", err)
		return
	}
	if items == nil {
		items = []cart.Item{}
	}

	respondSuccess(w, http.StatusOK, cartResponse{Items: items, Total: total})
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	productID := r.PathValue("productId")

	qty, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "quantity must be an integer", CodeValidation)
		return
	}

	if err := h.carts.UpdateQuantity(r.Context(), userID, productID, qty); err != nil {
		h.internalError(w, "update cart item", err)
		return
	}
	respondMessage(w, http.StatusOK, "cart updated", nil)
}

func (h *Handlers) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	productID := r.PathValue("productId")

	if err := h.carts.Remove(r.Context(), userID, productID); err != nil {
		h.internalError(w, "remove cart item", err)
		return
	}
	respondMessage(w, http.StatusOK, "item removed from cart", nil)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	if err := h.carts.Clear(r.Context(), userID); err != nil {
		h.internalError(w, "clear cart", err)
		return
	}
	respondMessage(w, http.StatusOK, "cart cleared", nil)
}

// Order handlers

type createOrderRequest struct {
	ShippingAddress order.ShippingAddress `json:"shippingAddress"`
}

func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if userID == "" {
		respondError(w, http.StatusBadRequest, "user identity is required", CodeValidation)
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", CodeValidation)
		return
	}

	o, err := h.checkout.PlaceOrder(r.Context(), userID, req.ShippingAddress)
	if err != nil {
		if errors.Is(err, checkout.ErrEmptyCart) {
			respondError(w, http.StatusBadRequest, "cannot create order: cart is empty", CodeValidation)
			return
		}
		h.internalError(w, "place order", err)
		return
	}

	respondMessage(w, http.StatusCreated, "order created", o)
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")

	o, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound) {
			respondError(w, http.StatusNotFound, "order not found: "+orderID, CodeNotFound)
			return
		}
		h.internalError(w, "get order", err)
		return
	}
	respondSuccess(w, http.StatusOK, o)
}

func (h *Handlers) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")

	orders, err := h.orders.ListByUser(r.Context(), userID)
	if err != nil {
		h.internalError(w, "list orders", err)
		return
	}
	if orders == nil {
		orders = []*order.Order{}
	}
	respondSuccess(w, http.StatusOK, orders)
}

func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	respondMessage(w, http.StatusOK, "pong", nil)
}

func (h *Handlers) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	if errors.Is(err, context.DeadlineExceeded) {
		respondError(w, http.StatusGatewayTimeout, "request timed out", CodeTimeout)
		return
	}
	respondError(w, http.StatusInternalServerError, "internal error", CodeSystemError)
}
