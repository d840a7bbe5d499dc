package cartstore

import (
	"context"
	"sync"
	"time"

	"github.com/example/orderly/internal/domain/cart"
)

type memoryCart struct {
	items     map[string]cart.Item
	expiresAt time.Time
}

// MemoryStore is an in-process cart store with the same TTL semantics
// as the Redis store: writes refresh the deadline, expired carts read
// as empty. Used by tests and single-process runs.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[string]*memoryCart
	ttl   time.Duration
	now   func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		carts: make(map[string]*memoryCart),
		ttl:   ttl,
		now:   time.Now,
	}
}

// live returns the cart for a user, dropping it first if expired.
func (s *MemoryStore) live(userID string) *memoryCart {
	c, ok := s.carts[userID]
	if !ok {
		return nil
	}
	if s.now().After(c.expiresAt) {
		delete(s.carts, userID)
		return nil
	}
	return c
}

func (s *MemoryStore) PutItem(ctx context.Context, userID string, item cart.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.live(userID)
	if c == nil {
		c = &memoryCart{items: make(map[string]cart.Item)}
		s.carts[userID] = c
	}
	c.items[item.ProductID] = item
	c.expiresAt = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) GetItem(ctx context.Context, userID, productID string) (*cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.live(userID)
	if c == nil {
		return nil, nil
	}
	item, ok := c.items[productID]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (s *MemoryStore) GetItems(ctx context.Context, userID string) ([]cart.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.live(userID)
	if c == nil {
		return nil, nil
	}
	items := make([]cart.Item, 0, len(c.items))
	for _, item := range c.items {
		items = append(items, item)
	}
	return items, nil
}

func (s *MemoryStore) RemoveItem(ctx context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.live(userID)
	if c == nil {
		return nil
	}
	delete(c.items, productID)
	c.expiresAt = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

func (s *MemoryStore) Size(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.live(userID)
	if c == nil {
		return 0, nil
	}
	return len(c.items), nil
}
