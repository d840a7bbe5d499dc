// Package saga holds the event consumers that drive an order from
// PENDING to CONFIRMED or FAILED: the reservation step and the status
// propagator.
package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/orderly/internal/domain/inventory"
	"github.com/example/orderly/internal/events"
	"github.com/example/orderly/internal/infrastructure/eventlog"
	"github.com/example/orderly/internal/infrastructure/idempotency"
	"github.com/example/orderly/internal/metrics"
)

// ReservationConsumer consumes order.placed and reserves every line
// item all-or-nothing, compensating partial reservations on failure.
type ReservationConsumer struct {
	inventory *inventory.Service
	log       eventlog.Log
	processed idempotency.Set
	group     string
	logger    *zap.Logger
}

func NewReservationConsumer(
	inv *inventory.Service,
	log eventlog.Log,
	processed idempotency.Set,
	group string,
	logger *zap.Logger,
) *ReservationConsumer {
	return &ReservationConsumer{
		inventory: inv,
		log:       log,
		processed: processed,
		group:     group,
		logger:    logger,
	}
}

// Run blocks consuming order.placed until ctx is cancelled.
func (c *ReservationConsumer) Run(ctx context.Context) error {
	return c.log.Subscribe(ctx, events.TopicOrderPlaced, c.group, c.Handle)
}

type reservedItem struct {
	productID string
	quantity  int
}

// Handle processes one delivered order.placed record. A transient error
// is returned so the record stays unacknowledged and is redelivered; an
// undecodable payload is logged and acknowledged to avoid a poison
// loop.
func (c *ReservationConsumer) Handle(ctx context.Context, key, value []byte) error {
	var evt events.OrderPlaced
	if err := json.Unmarshal(value, &evt); err != nil {
		c.logger.Error("dropping undecodable order.placed payload",
			zap.String("key", string(key)), zap.Error(err))
		return nil
	}
	if evt.EventID == "" || evt.OrderID == "" {
		c.logger.Error("dropping order.placed without event or order id")
		return nil
	}

	seen, err := c.processed.Seen(ctx, evt.EventID)
	if err != nil {
		return fmt.Errorf("idempotency check: %w", err)
	}
	if seen {
		c.logger.Info("event already processed, skipping",
			zap.String("eventId", evt.EventID), zap.String("orderId", evt.OrderID))
		return nil
	}

	c.logger.Info("processing OrderPlaced",
		zap.String("orderId", evt.OrderID),
		zap.String("eventId", evt.EventID),
		zap.Int("items", len(evt.Items)))

	var reservedSoFar []reservedItem
	var failures []string
	for _, item := range evt.Items {
		if c.inventory.Reserve(ctx, item.ProductID, item.Quantity) {
			reservedSoFar = append(reservedSoFar, reservedItem{item.ProductID, item.Quantity})
		} else {
			failures = append(failures, "Insufficient stock for product: "+item.ProductName)
		}
	}

	if len(failures) == 0 {
		if err := c.publish(ctx, events.TopicOrderConfirmed, evt.OrderID,
			events.NewOrderConfirmed(evt.OrderID, evt.UserID)); err != nil {
			return err
		}
		metrics.OrdersConfirmed.Inc()
		c.logger.Info("order confirmed, all items reserved",
			zap.String("orderId", evt.OrderID))
	} else {
		c.compensate(ctx, evt.OrderID, reservedSoFar)
		reason := strings.Join(failures, ". ") + "."
		if err := c.publish(ctx, events.TopicOrderFailed, evt.OrderID,
			events.NewOrderFailed(evt.OrderID, evt.UserID, reason, events.FailureInsufficientStock)); err != nil {
			return err
		}
		metrics.OrdersFailed.Inc()
		c.logger.Warn("order failed",
			zap.String("orderId", evt.OrderID), zap.String("reason", reason))
	}

	if err := c.processed.Mark(ctx, evt.EventID); err != nil {
		// The outcome is already published; a redelivery re-runs the
		// reservation, which reconciliation must later correct.
		c.logger.Warn("failed to mark event as processed",
			zap.String("eventId", evt.EventID), zap.Error(err))
	}
	return nil
}

// compensate releases exactly the reservations made by this attempt.
func (c *ReservationConsumer) compensate(ctx context.Context, orderID string, reserved []reservedItem) {
	for _, r := range reserved {
		if err := c.inventory.Release(ctx, r.productID, r.quantity); err != nil {
			c.logger.Error("compensation release failed",
				zap.String("orderId", orderID),
				zap.String("productId", r.productID),
				zap.Int("quantity", r.quantity),
				zap.Error(err))
		}
	}
}

func (c *ReservationConsumer) publish(ctx context.Context, topic, orderID string, evt any) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}
	if err := c.log.Produce(ctx, topic, orderID, payload); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
