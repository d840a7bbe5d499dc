package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the persistence contract for orders. Save updates the full
// record; implementations serialize writers on the same order.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	Save(ctx context.Context, o *Order) error
	CountByStatus(ctx context.Context, status Status) (int, error)
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Create persists a new order in PENDING state, assigning its id and
// timestamps. The id is the causal identifier for the whole saga.
func (s *Service) Create(ctx context.Context, o *Order) (*Order, error) {
	if len(o.Items) == 0 {
		return nil, ErrEmptyOrder
	}

	now := time.Now()
	o.ID = uuid.New().String()
	o.Status = StatusPending
	o.CreatedAt = now
	o.UpdatedAt = now

	if err := s.store.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.Info("order created",
		zap.String("orderId", o.ID),
		zap.String("userId", o.UserID),
		zap.String("total", o.TotalAmount.String()))
	return o, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	return s.store.Get(ctx, orderID)
}

func (s *Service) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	return s.store.ListByUser(ctx, userID)
}

func (s *Service) CountByStatus(ctx context.Context, status Status) (int, error) {
	return s.store.CountByStatus(ctx, status)
}

// UpdateStatus moves an order along the lifecycle FSM. Updating to the
// current status is a no-op, which makes redelivered status events
// harmless. Illegal edges return ErrInvalidTransition.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, newStatus Status, reason string) error {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}

	if o.Status == newStatus {
		return nil
	}
	if !o.Status.CanTransitionTo(newStatus) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, newStatus)
	}
	if newStatus == StatusFailed && reason == "" {
		return ErrReasonRequired
	}

	o.Status = newStatus
	if reason != "" {
		o.FailureReason = reason
	}
	o.UpdatedAt = time.Now()

	if err := s.store.Save(ctx, o); err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	s.logger.Info("order status updated",
		zap.String("orderId", orderID),
		zap.String("status", string(newStatus)))
	return nil
}
