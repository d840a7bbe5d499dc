package saga

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/example/orderly/internal/domain/order"
	"github.com/example/orderly/internal/events"
	"github.com/example/orderly/internal/infrastructure/eventlog"
)

// StatusPropagator consumes order.confirmed and order.failed and moves
// the order along the lifecycle FSM. Illegal edges, which cross-topic
// delivery can produce, are logged and dropped rather than retried.
type StatusPropagator struct {
	orders *order.Service
	log    eventlog.Log
	group  string
	logger *zap.Logger
}

func NewStatusPropagator(orders *order.Service, log eventlog.Log, group string, logger *zap.Logger) *StatusPropagator {
	return &StatusPropagator{orders: orders, log: log, group: group, logger: logger}
}

// Run blocks consuming both status topics until ctx is cancelled.
func (p *StatusPropagator) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() {
		errCh <- p.log.Subscribe(ctx, events.TopicOrderConfirmed, p.group, p.HandleConfirmed)
	}()
	go func() {
		errCh <- p.log.Subscribe(ctx, events.TopicOrderFailed, p.group, p.HandleFailed)
	}()
	return <-errCh
}

func (p *StatusPropagator) HandleConfirmed(ctx context.Context, key, value []byte) error {
	var evt events.OrderConfirmed
	if err := json.Unmarshal(value, &evt); err != nil {
		p.logger.Error("dropping undecodable order.confirmed payload", zap.Error(err))
		return nil
	}

	p.logger.Info("received OrderConfirmed", zap.String("orderId", evt.OrderID))
	return p.updateStatus(ctx, evt.OrderID, order.StatusConfirmed, "")
}

func (p *StatusPropagator) HandleFailed(ctx context.Context, key, value []byte) error {
	var evt events.OrderFailed
	if err := json.Unmarshal(value, &evt); err != nil {
		p.logger.Error("dropping undecodable order.failed payload", zap.Error(err))
		return nil
	}

	reason := evt.Reason
	if reason == "" {
		reason = "order failed: " + string(evt.FailureType)
	}
	p.logger.Info("received OrderFailed",
		zap.String("orderId", evt.OrderID), zap.String("reason", reason))
	return p.updateStatus(ctx, evt.OrderID, order.StatusFailed, reason)
}

func (p *StatusPropagator) updateStatus(ctx context.Context, orderID string, status order.Status, reason string) error {
	err := p.orders.UpdateStatus(ctx, orderID, status, reason)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, order.ErrInvalidTransition):
		p.logger.Warn("ignoring illegal status transition",
			zap.String("orderId", orderID),
			zap.String("target", string(status)),
			zap.Error(err))
		return nil
	case errors.Is(err, order.ErrOrderNotFound):
		p.logger.Warn("status event for unknown order, dropping",
			zap.String("orderId", orderID), zap.String("target", string(status)))
		return nil
	default:
		// Transient store failure: leave unacknowledged for redelivery.
		return err
	}
}
