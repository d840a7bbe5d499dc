package store

import (
	"context"
	"sort"
	"sync"

	"github.com/example/orderly/internal/domain/inventory"
	"github.com/example/orderly/internal/domain/order"
)

// MemoryProductStore keeps products in a map with the same
// check-and-set contract as the Postgres store. Used by tests and
// single-process runs.
type MemoryProductStore struct {
	mu       sync.Mutex
	products map[string]inventory.Product
}

func NewMemoryProductStore() *MemoryProductStore {
	return &MemoryProductStore{products: make(map[string]inventory.Product)}
}

func (s *MemoryProductStore) Get(ctx context.Context, productID string) (*inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, inventory.ErrProductNotFound
	}
	copied := p
	return &copied, nil
}

func (s *MemoryProductStore) Create(ctx context.Context, p *inventory.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = *p
	return nil
}

// Update writes the record only if the stored version matches the
// caller's read, then bumps the version by one.
func (s *MemoryProductStore) Update(ctx context.Context, p *inventory.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.products[p.ID]
	if !ok {
		return inventory.ErrProductNotFound
	}
	if current.Version != p.Version {
		return inventory.ErrVersionConflict
	}
	updated := *p
	updated.Version++
	s.products[p.ID] = updated
	p.Version = updated.Version
	return nil
}

func (s *MemoryProductStore) List(ctx context.Context, activeOnly bool) ([]*inventory.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*inventory.Product
	for _, p := range s.products {
		if activeOnly && !p.Active {
			continue
		}
		copied := p
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MemoryOrderStore keeps orders in a map keyed by order id.
type MemoryOrderStore struct {
	mu     sync.Mutex
	orders map[string]order.Order
}

func NewMemoryOrderStore() *MemoryOrderStore {
	return &MemoryOrderStore{orders: make(map[string]order.Order)}
}

func (s *MemoryOrderStore) Create(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = *o
	return nil
}

func (s *MemoryOrderStore) Get(ctx context.Context, orderID string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	copied := o
	return &copied, nil
}

func (s *MemoryOrderStore) ListByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*order.Order
	for _, o := range s.orders {
		if o.UserID != userID {
			continue
		}
		copied := o
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryOrderStore) Save(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; !ok {
		return order.ErrOrderNotFound
	}
	s.orders[o.ID] = *o
	return nil
}

func (s *MemoryOrderStore) CountByStatus(ctx context.Context, status order.Status) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, o := range s.orders {
		if o.Status == status {
			count++
		}
	}
	return count, nil
}
