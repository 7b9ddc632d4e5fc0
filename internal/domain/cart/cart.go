// Package cart implements the ordered line-item collection shared by the
// anonymous selection flow and the staff invoice flow.
package cart

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/madraim/shopdesk/internal/domain/catalog"
	"github.com/madraim/shopdesk/internal/domain/pricing"
)

// PricedProduct pairs a catalog entry with its resolved prices. The cart
// keeps both tier prices on every line so a tier switch never has to go
// back to the catalog.
type PricedProduct struct {
	Product catalog.Product
	Prices  pricing.ResolvedPrice
}

// Line is a single cart position. UnitPrice is the price in effect for
// the chosen tier when the line was (re)priced.
type Line struct {
	ProductID     string
	Name          string
	PointsPerUnit decimal.Decimal
	Quantity      int
	Tier          pricing.Tier
	UnitPrice     decimal.Decimal

	// Both tier prices, captured when the line was priced.
	NormalPrice decimal.Decimal
	MemberPrice decimal.Decimal
}

// Total returns UnitPrice × Quantity for the line.
func (l Line) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is an ordered collection of lines over a fixed priced-catalog
// snapshot. It is not safe for concurrent use; each client session owns
// its own cart.
type Cart struct {
	lg       *zap.Logger
	products map[string]PricedProduct
	lines    []Line
}

// New creates an empty cart over the given priced catalog snapshot.
func New(lg *zap.Logger, products map[string]PricedProduct) *Cart {
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Cart{lg: lg, products: products}
}

// AddOrIncrement adds delta units of the product to the cart, creating a
// normal-tier line when none exists. A cart must never reference a product
// missing from the catalog, so an unknown ID is a logged no-op rather than
// an error surfaced to the caller. A resulting quantity ≤ 0 removes the
// line.
func (c *Cart) AddOrIncrement(productID string, delta int) {
	if i := c.index(productID); i >= 0 {
		c.setQuantityAt(i, c.lines[i].Quantity+delta)
		return
	}
	p, ok := c.products[productID]
	if !ok {
		c.lg.Warn("ignoring unknown product in cart", zap.String("product_id", productID))
		return
	}
	if delta <= 0 {
		return
	}
	c.lines = append(c.lines, Line{
		ProductID:     p.Product.ID,
		Name:          p.Product.Name,
		PointsPerUnit: p.Product.PointsPerUnit,
		Quantity:      delta,
		Tier:          pricing.TierNormal,
		UnitPrice:     p.Prices.Final,
		NormalPrice:   p.Prices.Final,
		MemberPrice:   p.Prices.FinalMember,
	})
}

// SetQuantity sets the absolute quantity of an existing line. Quantities
// ≤ 0 remove the line entirely — zero-quantity lines never persist.
func (c *Cart) SetQuantity(productID string, qty int) {
	i := c.index(productID)
	if i < 0 {
		return
	}
	c.setQuantityAt(i, qty)
}

// Remove deletes the line for the given product, if present.
func (c *Cart) Remove(productID string) {
	if i := c.index(productID); i >= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
	}
}

// SwitchTier changes a line's price tier and immediately recomputes its
// unit price from the captured tier prices. Quantity is untouched.
func (c *Cart) SwitchTier(productID string, tier pricing.Tier) {
	i := c.index(productID)
	if i < 0 || !tier.Valid() {
		return
	}
	l := &c.lines[i]
	l.Tier = tier
	if tier == pricing.TierMember {
		l.UnitPrice = l.MemberPrice
	} else {
		l.UnitPrice = l.NormalPrice
	}
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	out := make([]Line, len(c.lines))
	copy(out, c.lines)
	return out
}

// Subtotal returns the sum of line totals. Shipping is added later by the
// order assembler.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.lines {
		sum = sum.Add(l.Total())
	}
	return sum
}

func (c *Cart) index(productID string) int {
	for i, l := range c.lines {
		if l.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) setQuantityAt(i, qty int) {
	if qty <= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return
	}
	c.lines[i].Quantity = qty
}
