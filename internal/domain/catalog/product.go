// Package catalog holds the product catalog: entries store their base
// prices in a reference foreign currency; sellable local prices are
// derived on demand by the pricing package.
package catalog

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrReferencedByOrders is returned when a product cannot be hard-deleted
// because existing orders reference it. Callers must either toggle
// availability off or repeat the delete with explicit acknowledgement.
var ErrReferencedByOrders = errors.New("product is referenced by existing orders")

// Product is a catalog entry. BaseNormalPrice and BaseMemberPrice are
// stored in the reference foreign currency (e.g. USD), before any margin,
// conversion or discount.
type Product struct {
	ID              string
	CategoryID      string
	Name            string
	Description     string
	BaseNormalPrice decimal.Decimal
	BaseMemberPrice decimal.Decimal
	PointsPerUnit   decimal.Decimal
	Available       bool
	CreatedAt       time.Time
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, p *Product) error
	// Delete hard-deletes a product. When force is false and any order
	// references the product, it returns ErrReferencedByOrders and leaves
	// the row untouched.
	Delete(ctx context.Context, id string, force bool) error
}
