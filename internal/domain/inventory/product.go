package inventory

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrVersionConflict   = errors.New("product version conflict")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrNegativeStock     = errors.New("stock cannot be negative")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Product is the sole contested shared record in the system. Version
// increases by exactly one per persisted mutation and backs the
// optimistic-concurrency discipline.
type Product struct {
	ID               string          `json:"id"`
	SKU              string          `json:"sku"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	Price            decimal.Decimal `json:"price"`
	StockQuantity    int             `json:"stockQuantity"`
	ReservedQuantity int             `json:"reservedQuantity"`
	Active           bool            `json:"active"`
	Version          int             `json:"version"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// AvailableQuantity is the stock not currently held by reservations.
func (p *Product) AvailableQuantity() int {
	return p.StockQuantity - p.ReservedQuantity
}

// HasAvailableStock reports whether qty units can still be reserved.
func (p *Product) HasAvailableStock(qty int) bool {
	return p.AvailableQuantity() >= qty
}
