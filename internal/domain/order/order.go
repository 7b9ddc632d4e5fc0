// Package order builds and persists price-frozen invoices. An order is
// immutable except for the explicit edit operation, which re-runs the
// assembler and overwrites totals while preserving identity, creation
// time, and the write-once link to the originating selection.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/madraim/shopdesk/internal/domain/pricing"
)

// Sentinel errors for order assembly and lookup.
var (
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateSelection means an order already exists for the
	// selection — the uniqueness constraint is the last line of defense
	// against double invoicing.
	ErrDuplicateSelection = errors.New("an order already exists for this selection")
	ErrEmptyLines         = errors.New("at least one line required")
	ErrInvalidQuantity    = errors.New("line quantity must be greater than 0")
	ErrNegativeShipping   = errors.New("shipping cost must not be negative")
)

// UnknownProductError indicates an order line references a product that
// no longer exists in the catalog. Unlike the cart's silent no-op, an
// invoice must never be built over a dangling reference.
type UnknownProductError struct {
	ProductID string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("product %s not found in catalog", e.ProductID)
}

// ProcessedWithoutOrderError reports the inconsistent-but-recoverable
// intermediate state of the two-phase conversion protocol: the selection
// was marked processed but the order write failed. The sale is not lost —
// staff must re-create the order manually from the reported selection,
// never by converting it again.
type ProcessedWithoutOrderError struct {
	SelectionID string
	Err         error
}

func (e *ProcessedWithoutOrderError) Error() string {
	return fmt.Sprintf("selection %s marked processed but order creation failed: %v", e.SelectionID, e.Err)
}

func (e *ProcessedWithoutOrderError) Unwrap() error { return e.Err }

// Line is an invoice position with its price frozen at assembly time.
type Line struct {
	ProductID     string          `json:"product_id"`
	Name          string          `json:"name"`
	PointsPerUnit decimal.Decimal `json:"points_per_unit"`
	Quantity      int             `json:"quantity"`
	Tier          pricing.Tier    `json:"tier"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
}

// Total returns UnitPrice × Quantity for the line.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Order is a durable invoice. TotalPrice and TotalPoints are derived by
// the assembler and stored denormalized so historical invoices keep their
// amounts regardless of later catalog or settings changes.
type Order struct {
	ID            string
	CustomerID    string
	CustomerName  string
	Lines         []Line
	ShippingCost  decimal.Decimal
	TotalPrice    decimal.Decimal
	TotalPoints   decimal.Decimal
	MarginApplied bool
	// SelectionID links back to the originating selection, when there is
	// one. Write-once: set at creation, preserved verbatim by edits.
	SelectionID string
	CreatedAt   time.Time
}

// Repository defines persistence operations for orders.
type Repository interface {
	List(ctx context.Context) ([]Order, error)
	GetByID(ctx context.Context, id string) (*Order, error)
	Create(ctx context.Context, o *Order) error
	// Update overwrites lines, totals and shipping of an existing order.
	// Identity, creation time and selection link are never touched.
	Update(ctx context.Context, o *Order) error
	Delete(ctx context.Context, id string) error
	// CountByProduct reports how many orders reference the given product,
	// backing the catalog delete guard.
	CountByProduct(ctx context.Context, productID string) (int, error)
}
