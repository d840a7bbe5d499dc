package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/example/orderly/internal/domain/inventory"
	"github.com/example/orderly/internal/domain/order"
)

// ConnectPostgres opens and verifies a PostgreSQL connection.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS products (
	product_id        TEXT PRIMARY KEY,
	sku               TEXT NOT NULL DEFAULT '',
	name              TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL DEFAULT '',
	price             NUMERIC(12,2) NOT NULL,
	stock_quantity    INTEGER NOT NULL CHECK (stock_quantity >= 0),
	reserved_quantity INTEGER NOT NULL CHECK (reserved_quantity >= 0),
	active            BOOLEAN NOT NULL DEFAULT TRUE,
	version           INTEGER NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	order_id         TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	items            JSONB NOT NULL,
	subtotal         NUMERIC(12,2) NOT NULL,
	tax              NUMERIC(12,2) NOT NULL,
	shipping_cost    NUMERIC(12,2) NOT NULL,
	total_amount     NUMERIC(12,2) NOT NULL,
	status           TEXT NOT NULL,
	shipping_address JSONB NOT NULL,
	failure_reason   TEXT NOT NULL DEFAULT '',
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_orders_user_id ON orders (user_id);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status);
`

// InitSchema creates the tables if they do not exist.
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// PostgresProductStore persists products with optimistic concurrency:
// updates are conditional on the version read by the caller.
type PostgresProductStore struct {
	db *sql.DB
}

func NewPostgresProductStore(db *sql.DB) *PostgresProductStore {
	return &PostgresProductStore{db: db}
}

func (s *PostgresProductStore) Get(ctx context.Context, productID string) (*inventory.Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT product_id, sku, name, description, category, price,
		        stock_quantity, reserved_quantity, active, version, created_at, updated_at
		 FROM products WHERE product_id = $1`, productID)
	return scanProduct(row)
}

func scanProduct(row *sql.Row) (*inventory.Product, error) {
	var p inventory.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.Price,
		&p.StockQuantity, &p.ReservedQuantity, &p.Active, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, inventory.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresProductStore) Create(ctx context.Context, p *inventory.Product) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (product_id, sku, name, description, category, price,
		                       stock_quantity, reserved_quantity, active, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		p.ID, p.SKU, p.Name, p.Description, p.Category, p.Price,
		p.StockQuantity, p.ReservedQuantity, p.Active, p.Version, p.CreatedAt, p.UpdatedAt)
	return err
}

// Update is a check-and-set over the version column. Zero affected rows
// with an existing record means another writer got there first.
func (s *PostgresProductStore) Update(ctx context.Context, p *inventory.Product) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products
		 SET sku = $1, name = $2, description = $3, category = $4, price = $5,
		     stock_quantity = $6, reserved_quantity = $7, active = $8,
		     version = version + 1, updated_at = $9
		 WHERE product_id = $10 AND version = $11`,
		p.SKU, p.Name, p.Description, p.Category, p.Price,
		p.StockQuantity, p.ReservedQuantity, p.Active, p.UpdatedAt,
		p.ID, p.Version)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM products WHERE product_id = $1)`, p.ID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return inventory.ErrProductNotFound
		}
		return inventory.ErrVersionConflict
	}
	p.Version++
	return nil
}

func (s *PostgresProductStore) List(ctx context.Context, activeOnly bool) ([]*inventory.Product, error) {
	query := `SELECT product_id, sku, name, description, category, price,
	                 stock_quantity, reserved_quantity, active, version, created_at, updated_at
	          FROM products`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY product_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*inventory.Product
	for rows.Next() {
		var p inventory.Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.Price,
			&p.StockQuantity, &p.ReservedQuantity, &p.Active, &p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// PostgresOrderStore persists orders; items and the shipping address
// are stored as JSONB documents.
type PostgresOrderStore struct {
	db *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) *PostgresOrderStore {
	return &PostgresOrderStore{db: db}
}

func (s *PostgresOrderStore) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	address, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (order_id, user_id, items, subtotal, tax, shipping_cost,
		                     total_amount, status, shipping_address, failure_reason, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		o.ID, o.UserID, items, o.Subtotal, o.Tax, o.ShippingCost,
		o.TotalAmount, o.Status, address, o.FailureReason, o.CreatedAt, o.UpdatedAt)
	return err
}

func (s *PostgresOrderStore) Get(ctx context.Context, orderID string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT order_id, user_id, items, subtotal, tax, shipping_cost,
		        total_amount, status, shipping_address, failure_reason, created_at, updated_at
		 FROM orders WHERE order_id = $1`, orderID)

	o, err := scanOrder(row.Scan)
	if err == sql.ErrNoRows {
		return nil, order.ErrOrderNotFound
	}
	return o, err
}

func scanOrder(scan func(dest ...any) error) (*order.Order, error) {
	var o order.Order
	var items, address []byte
	err := scan(&o.ID, &o.UserID, &items, &o.Subtotal, &o.Tax, &o.ShippingCost,
		&o.TotalAmount, &o.Status, &address, &o.FailureReason, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("decode shipping address: %w", err)
	}
	return &o, nil
}

func (s *PostgresOrderStore) ListByUser(ctx context.Context, userID string) ([]*order.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, user_id, items, subtotal, tax, shipping_cost,
		        total_amount, status, shipping_address, failure_reason, created_at, updated_at
		 FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*order.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PostgresOrderStore) Save(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders
		 SET items = $1, subtotal = $2, tax = $3, shipping_cost = $4, total_amount = $5,
		     status = $6, failure_reason = $7, updated_at = $8
		 WHERE order_id = $9`,
		items, o.Subtotal, o.Tax, o.ShippingCost, o.TotalAmount,
		o.Status, o.FailureReason, o.UpdatedAt, o.ID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

func (s *PostgresOrderStore) CountByStatus(ctx context.Context, status order.Status) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE status = $1`, status).Scan(&count)
	return count, err
}
