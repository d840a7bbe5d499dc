// Package checkout turns a cart into a PENDING order and starts the
// reservation saga by publishing OrderPlaced.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/orderly/internal/domain/cart"
	"github.com/example/orderly/internal/domain/order"
	"github.com/example/orderly/internal/events"
	"github.com/example/orderly/internal/infrastructure/eventlog"
	"github.com/example/orderly/internal/metrics"
	"github.com/example/orderly/internal/money"
)

var ErrEmptyCart = errors.New("cart is empty")

const publishTimeout = 10 * time.Second

type Service struct {
	carts  *cart.Service
	orders *order.Service
	log    eventlog.Log
	logger *zap.Logger
}

func NewService(carts *cart.Service, orders *order.Service, log eventlog.Log, logger *zap.Logger) *Service {
	return &Service{carts: carts, orders: orders, log: log, logger: logger}
}

// PlaceOrder reads the user's cart, persists a PENDING order with the
// computed totals, publishes OrderPlaced keyed by the new order id and
// clears the cart. The steps after order creation are not atomic: a
// failed publish leaves the order PENDING for reconciliation, a failed
// cart clear lets the user resubmit. Submission is not idempotent.
func (s *Service) PlaceOrder(ctx context.Context, userID string, address order.ShippingAddress) (*order.Order, error) {
	items, err := s.carts.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	orderItems := make([]order.Item, 0, len(items))
	subtotal := decimal.Zero
	for _, item := range items {
		line := item.LineTotal()
		subtotal = subtotal.Add(line)
		orderItems = append(orderItems, order.Item{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
			Total:       money.Round(line),
		})
	}

	tax := money.Tax(subtotal)
	shipping := money.Shipping(subtotal)
	total := subtotal.Add(tax).Add(shipping)

	o := &order.Order{
		UserID:          userID,
		Items:           orderItems,
		Subtotal:        money.Round(subtotal),
		Tax:             money.Round(tax),
		ShippingCost:    money.Round(shipping),
		TotalAmount:     money.Round(total),
		ShippingAddress: address,
	}

	o, err = s.orders.Create(ctx, o)
	if err != nil {
		return nil, err
	}

	s.publishOrderPlaced(o)
	metrics.OrdersPlaced.Inc()

	if err := s.carts.Clear(ctx, userID); err != nil {
		// The order stands; a resubmitted cart produces a duplicate.
		s.logger.Warn("failed to clear cart after order placement",
			zap.String("orderId", o.ID), zap.String("userId", userID), zap.Error(err))
	}

	return o, nil
}

// publishOrderPlaced reports the publish outcome asynchronously so the
// originating request never blocks on the log.
func (s *Service) publishOrderPlaced(o *order.Order) {
	eventItems := make([]events.OrderItemPayload, 0, len(o.Items))
	for _, item := range o.Items {
		eventItems = append(eventItems, events.OrderItemPayload{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	evt := events.OrderPlaced{
		EventID:     uuid.New().String(),
		OrderID:     o.ID,
		UserID:      o.UserID,
		Items:       eventItems,
		TotalAmount: o.TotalAmount,
		Timestamp:   time.Now(),
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		s.logger.Error("failed to encode OrderPlaced",
			zap.String("orderId", o.ID), zap.Error(err))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := s.log.Produce(ctx, events.TopicOrderPlaced, o.ID, payload); err != nil {
			metrics.PublishFailures.Inc()
			s.logger.Error("failed to publish OrderPlaced, order stays PENDING",
				zap.String("orderId", o.ID),
				zap.String("eventId", evt.EventID),
				zap.Error(err))
			return
		}
		s.logger.Info("published OrderPlaced",
			zap.String("orderId", o.ID), zap.String("eventId", evt.EventID))
	}()
}
