package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/madraim/shopdesk/internal/domain/order"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
// Line items are serialized to JSONB; the selection_id column carries a
// UNIQUE constraint so the store itself rejects a second order for the
// same selection.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, customer_id, customer_name, lines, shipping_cost,
	total_price, total_points, margin_applied, selection_id, created_at`

// Create persists a new order. A unique violation on selection_id means a
// concurrent conversion already produced an order for the selection and
// surfaces as order.ErrDuplicateSelection.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("marshaling order lines: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO orders (id, customer_id, customer_name, lines, shipping_cost,
			total_price, total_points, margin_applied, selection_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		o.ID, o.CustomerID, o.CustomerName, linesJSON, o.ShippingCost,
		o.TotalPrice, o.TotalPoints, o.MarginApplied,
		nullable(o.SelectionID), o.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return order.ErrDuplicateSelection
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Update overwrites lines, totals, shipping and customer denormalization.
// id, created_at and selection_id are deliberately absent from the SET
// list: identity, history and the selection link never change.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	linesJSON, err := json.Marshal(o.Lines)
	if err != nil {
		return fmt.Errorf("marshaling order lines: %w", err)
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE orders SET customer_id = $2, customer_name = $3, lines = $4,
			shipping_cost = $5, total_price = $6, total_points = $7,
			margin_applied = $8
		WHERE id = $1`,
		o.ID, o.CustomerID, o.CustomerName, linesJSON,
		o.ShippingCost, o.TotalPrice, o.TotalPoints, o.MarginApplied)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// GetByID returns a single order.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return o, nil
}

// List returns all orders, newest first.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// Delete removes an order.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// CountByProduct reports how many orders contain a line for the product.
func (r *OrderRepository) CountByProduct(ctx context.Context, productID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM orders
		WHERE lines @> jsonb_build_array(jsonb_build_object('product_id', $1::text))`,
		productID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting orders for product %q: %w", productID, err)
	}
	return count, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o           order.Order
		linesJSON   []byte
		selectionID *string
	)
	err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &linesJSON,
		&o.ShippingCost, &o.TotalPrice, &o.TotalPoints, &o.MarginApplied,
		&selectionID, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(linesJSON, &o.Lines); err != nil {
		return nil, fmt.Errorf("unmarshaling order lines: %w", err)
	}
	if selectionID != nil {
		o.SelectionID = *selectionID
	}
	return &o, nil
}

// nullable maps an empty string to NULL so the selection_id UNIQUE
// constraint ignores direct invoices.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
