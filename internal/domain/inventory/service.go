package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/orderly/internal/metrics"
)

// maxRetryAttempts bounds the optimistic-concurrency retry loop.
const maxRetryAttempts = 3

// Store is the persistence contract for products. Update is a
// check-and-set: it writes the record only if the stored version equals
// p.Version, bumps the version by one, and returns ErrVersionConflict
// otherwise.
type Store interface {
	Get(ctx context.Context, productID string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	List(ctx context.Context, activeOnly bool) ([]*Product, error)
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Reserve attempts to hold qty units of a product. It returns true only
// if the product exists, is active and has enough available stock.
// Version conflicts are retried with a fresh read; after the retries
// are exhausted the call reports false, which the saga folds into
// insufficient stock. The actual cause is logged here.
func (s *Service) Reserve(ctx context.Context, productID string, qty int) bool {
	if qty <= 0 {
		s.logger.Warn("reserve rejected: non-positive quantity",
			zap.String("productId", productID), zap.Int("quantity", qty))
		return false
	}

	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		p, err := s.store.Get(ctx, productID)
		if err != nil {
			s.logger.Warn("reserve failed: product lookup",
				zap.String("productId", productID), zap.Error(err))
			return false
		}
		if !p.Active {
			s.logger.Warn("reserve failed: product inactive",
				zap.String("productId", productID))
			return false
		}
		if !p.HasAvailableStock(qty) {
			s.logger.Warn("reserve failed: insufficient stock",
				zap.String("productId", productID),
				zap.Int("requested", qty),
				zap.Int("available", p.AvailableQuantity()))
			return false
		}

		p.ReservedQuantity += qty
		p.UpdatedAt = time.Now()
		err = s.store.Update(ctx, p)
		if err == nil {
			s.logger.Info("stock reserved",
				zap.String("productId", productID),
				zap.Int("quantity", qty),
				zap.Int("available", p.AvailableQuantity()))
			return true
		}
		if !errors.Is(err, ErrVersionConflict) {
			s.logger.Error("reserve failed: store update",
				zap.String("productId", productID), zap.Error(err))
			return false
		}

		metrics.ReservationConflicts.Inc()
		s.logger.Warn("reserve conflict, retrying",
			zap.String("productId", productID),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", maxRetryAttempts))
	}

	s.logger.Error("reserve failed: retries exhausted",
		zap.String("productId", productID), zap.Int("quantity", qty))
	return false
}

// Release frees previously reserved units. The decrement is clamped at
// zero so a release can never drive the reserved counter negative.
func (s *Service) Release(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		p, err := s.store.Get(ctx, productID)
		if err != nil {
			return fmt.Errorf("release stock: %w", err)
		}

		released := qty
		if released > p.ReservedQuantity {
			released = p.ReservedQuantity
		}
		p.ReservedQuantity -= released
		p.UpdatedAt = time.Now()

		err = s.store.Update(ctx, p)
		if err == nil {
			s.logger.Info("stock released",
				zap.String("productId", productID), zap.Int("quantity", released))
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return fmt.Errorf("release stock: %w", err)
		}
		metrics.ReservationConflicts.Inc()
	}
	return fmt.Errorf("release stock %s: %w", productID, ErrVersionConflict)
}

// ConfirmDeduction converts a reservation into a real stock deduction.
// Callers must ensure qty was previously reserved.
func (s *Service) ConfirmDeduction(ctx context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}

	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		p, err := s.store.Get(ctx, productID)
		if err != nil {
			return fmt.Errorf("confirm deduction: %w", err)
		}
		if p.ReservedQuantity < qty || p.StockQuantity < qty {
			return fmt.Errorf("confirm deduction %s: %w", productID, ErrInsufficientStock)
		}

		p.StockQuantity -= qty
		p.ReservedQuantity -= qty
		p.UpdatedAt = time.Now()

		err = s.store.Update(ctx, p)
		if err == nil {
			s.logger.Info("stock deduction confirmed",
				zap.String("productId", productID), zap.Int("quantity", qty))
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return fmt.Errorf("confirm deduction: %w", err)
		}
		metrics.ReservationConflicts.Inc()
	}
	return fmt.Errorf("confirm deduction %s: %w", productID, ErrVersionConflict)
}

// CreateProduct registers a new active product.
func (s *Service) CreateProduct(ctx context.Context, p *Product) (*Product, error) {
	if p.StockQuantity < 0 {
		return nil, ErrNegativeStock
	}
	now := time.Now()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.Active = true
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.store.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	s.logger.Info("product created",
		zap.String("productId", p.ID), zap.String("sku", p.SKU))
	return p, nil
}

// AdjustStock changes the stock counter by a signed delta.
func (s *Service) AdjustStock(ctx context.Context, productID string, delta int) error {
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		p, err := s.store.Get(ctx, productID)
		if err != nil {
			return err
		}
		if p.StockQuantity+delta < 0 {
			return ErrNegativeStock
		}
		p.StockQuantity += delta
		p.UpdatedAt = time.Now()

		err = s.store.Update(ctx, p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrVersionConflict) {
			return err
		}
		metrics.ReservationConflicts.Inc()
	}
	return fmt.Errorf("adjust stock %s: %w", productID, ErrVersionConflict)
}

// UpdatePrice sets a new unit price.
func (s *Service) UpdatePrice(ctx context.Context, productID string, price decimal.Decimal) error {
	p, err := s.store.Get(ctx, productID)
	if err != nil {
		return err
	}
	p.Price = price
	p.UpdatedAt = time.Now()
	return s.store.Update(ctx, p)
}

// SetActive activates or soft-deletes a product.
func (s *Service) SetActive(ctx context.Context, productID string, active bool) error {
	p, err := s.store.Get(ctx, productID)
	if err != nil {
		return err
	}
	p.Active = active
	p.UpdatedAt = time.Now()
	return s.store.Update(ctx, p)
}

func (s *Service) Get(ctx context.Context, productID string) (*Product, error) {
	return s.store.Get(ctx, productID)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*Product, error) {
	return s.store.List(ctx, activeOnly)
}
