package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/madraim/shopdesk/internal/domain/catalog"
)

var _ catalog.Repository = (*ProductRepository)(nil)

// ProductRepository implements catalog.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

const productColumns = `id, category_id, name, description,
	base_normal_price, base_member_price, points_per_unit, available, created_at`

// List returns all products ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// Create inserts a new catalog entry.
func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO products (id, category_id, name, description,
			base_normal_price, base_member_price, points_per_unit, available, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.CategoryID, p.Name, p.Description,
		p.BaseNormalPrice, p.BaseMemberPrice, p.PointsPerUnit, p.Available, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Upsert inserts or overwrites a catalog entry by ID. Used by the seed
// tool; the API goes through Create/Update.
func (r *ProductRepository) Upsert(ctx context.Context, p *catalog.Product) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO products (id, category_id, name, description,
			base_normal_price, base_member_price, points_per_unit, available, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			category_id = EXCLUDED.category_id,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			base_normal_price = EXCLUDED.base_normal_price,
			base_member_price = EXCLUDED.base_member_price,
			points_per_unit = EXCLUDED.points_per_unit,
			available = EXCLUDED.available`,
		p.ID, p.CategoryID, p.Name, p.Description,
		p.BaseNormalPrice, p.BaseMemberPrice, p.PointsPerUnit, p.Available, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// UpdateBasePrices overwrites only the foreign base prices of an existing
// product. Used by the price list ingest tool; unknown IDs are ignored
// and reported via the returned flag.
func (r *ProductRepository) UpdateBasePrices(ctx context.Context, id string, normal, member decimal.Decimal) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products SET base_normal_price = $2, base_member_price = $3
		WHERE id = $1`,
		id, normal, member)
	if err != nil {
		return false, fmt.Errorf("updating base prices for %q: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Update overwrites an existing catalog entry.
func (r *ProductRepository) Update(ctx context.Context, p *catalog.Product) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE products SET category_id = $2, name = $3, description = $4,
			base_normal_price = $5, base_member_price = $6,
			points_per_unit = $7, available = $8
		WHERE id = $1`,
		p.ID, p.CategoryID, p.Name, p.Description,
		p.BaseNormalPrice, p.BaseMemberPrice, p.PointsPerUnit, p.Available)
	if err != nil {
		return fmt.Errorf("updating product %q: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

// Delete hard-deletes a product. Without force, a product referenced by
// any order is left untouched and ErrReferencedByOrders is returned so
// the caller can surface the warning and ask for acknowledgement.
func (r *ProductRepository) Delete(ctx context.Context, id string, force bool) error {
	if !force {
		referenced, err := r.referencedByOrders(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return catalog.ErrReferencedByOrders
		}
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return catalog.ErrNotFound
	}
	return nil
}

func (r *ProductRepository) referencedByOrders(ctx context.Context, id string) (bool, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM orders
		WHERE lines @> jsonb_build_array(jsonb_build_object('product_id', $1::text))`,
		id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("counting order references for %q: %w", id, err)
	}
	return count > 0, nil
}

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description,
		&p.BaseNormalPrice, &p.BaseMemberPrice, &p.PointsPerUnit,
		&p.Available, &p.CreatedAt)
	return p, err
}
