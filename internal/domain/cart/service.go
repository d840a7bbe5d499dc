package cart

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Store is the ephemeral per-user cart backing. Every mutating call
// refreshes the cart's TTL; reads do not. Implementations serialize
// concurrent writers on the same user key.
type Store interface {
	PutItem(ctx context.Context, userID string, item Item) error
	GetItem(ctx context.Context, userID, productID string) (*Item, error)
	GetItems(ctx context.Context, userID string) ([]Item, error)
	RemoveItem(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
	Size(ctx context.Context, userID string) (int, error)
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// Add puts an item into the cart. An existing entry for the same
// product is overwritten, not incremented.
func (s *Service) Add(ctx context.Context, userID string, item Item) error {
	if item.ProductID == "" {
		return ErrInvalidProduct
	}
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if err := s.store.PutItem(ctx, userID, item); err != nil {
		return fmt.Errorf("add to cart: %w", err)
	}
	s.logger.Debug("cart item added",
		zap.String("userId", userID), zap.String("productId", item.ProductID))
	return nil
}

// UpdateQuantity sets the quantity of an existing entry. A quantity of
// zero or less removes the entry. Unknown products are ignored.
func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, qty int) error {
	if qty <= 0 {
		return s.Remove(ctx, userID, productID)
	}

	item, err := s.store.GetItem(ctx, userID, productID)
	if err != nil {
		return fmt.Errorf("update cart quantity: %w", err)
	}
	if item == nil {
		return nil
	}
	item.Quantity = qty
	return s.store.PutItem(ctx, userID, *item)
}

func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	if err := s.store.RemoveItem(ctx, userID, productID); err != nil {
		return fmt.Errorf("remove from cart: %w", err)
	}
	return nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Item, error) {
	return s.store.GetItems(ctx, userID)
}

// Total sums quantity * price over the cart.
func (s *Service) Total(ctx context.Context, userID string) (decimal.Decimal, error) {
	items, err := s.store.GetItems(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total, nil
}

func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := s.store.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	s.logger.Debug("cart cleared", zap.String("userId", userID))
	return nil
}

func (s *Service) IsEmpty(ctx context.Context, userID string) (bool, error) {
	n, err := s.store.Size(ctx, userID)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}
