package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/madraim/shopdesk/internal/domain/catalog"
	"github.com/madraim/shopdesk/internal/domain/customer"
	"github.com/madraim/shopdesk/internal/domain/pricing"
)

// LineSpec names what the caller wants invoiced: a product, a tier, a
// quantity. Prices are deliberately absent — the assembler freezes them.
type LineSpec struct {
	ProductID string
	Tier      pricing.Tier
	Quantity  int
}

// AssembleInput carries everything Assemble needs. Products must contain
// a current catalog row for every referenced product so line prices
// reflect the catalog as of assembly time, not cart-add time.
type AssembleInput struct {
	Specs        []LineSpec
	Products     map[string]catalog.Product
	Customer     customer.Customer
	ShippingCost decimal.Decimal
	ApplyMargin  bool
	Settings     pricing.Settings
	SelectionID  string
}

// Assembler turns validated input into a fully formed Order ready for
// persistence. The clock and ID source are injectable for tests.
type Assembler struct {
	now   func() time.Time
	newID func() string
}

// NewAssembler creates an Assembler using the real clock and UUID IDs.
func NewAssembler() *Assembler {
	return &Assembler{
		now:   time.Now,
		newID: func() string { return uuid.New().String() },
	}
}

// Assemble freezes each line's unit price through the pricing pipeline at
// assembly time, computes the totals, and returns a new Order.
// TotalPrice = Σ(unit × qty) + shipping; TotalPoints = Σ(points × qty).
// Unit prices are rounded to the currency's minor unit only here, at the
// freeze boundary.
func (a *Assembler) Assemble(in AssembleInput) (*Order, error) {
	lines, err := a.freezeLines(in)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:            a.newID(),
		CustomerID:    in.Customer.ID,
		CustomerName:  in.Customer.Name,
		Lines:         lines,
		ShippingCost:  in.ShippingCost,
		MarginApplied: in.ApplyMargin,
		SelectionID:   in.SelectionID,
		CreatedAt:     a.now(),
	}
	o.TotalPrice, o.TotalPoints = totals(lines, in.ShippingCost)
	return o, nil
}

// Reassemble re-runs assembly against an existing order, overwriting its
// lines and totals. Identity, creation time, and the selection
// back-reference are taken from the stored order and never change; the
// SelectionID field of in is ignored.
func (a *Assembler) Reassemble(existing *Order, in AssembleInput) (*Order, error) {
	lines, err := a.freezeLines(in)
	if err != nil {
		return nil, err
	}

	o := &Order{
		ID:            existing.ID,
		CustomerID:    in.Customer.ID,
		CustomerName:  in.Customer.Name,
		Lines:         lines,
		ShippingCost:  in.ShippingCost,
		MarginApplied: in.ApplyMargin,
		SelectionID:   existing.SelectionID,
		CreatedAt:     existing.CreatedAt,
	}
	o.TotalPrice, o.TotalPoints = totals(lines, in.ShippingCost)
	return o, nil
}

func (a *Assembler) freezeLines(in AssembleInput) ([]Line, error) {
	if len(in.Specs) == 0 {
		return nil, ErrEmptyLines
	}
	if in.ShippingCost.IsNegative() {
		return nil, ErrNegativeShipping
	}

	lines := make([]Line, 0, len(in.Specs))
	for _, spec := range in.Specs {
		if spec.Quantity <= 0 {
			return nil, ErrInvalidQuantity
		}
		p, ok := in.Products[spec.ProductID]
		if !ok {
			return nil, &UnknownProductError{ProductID: spec.ProductID}
		}

		rp, err := pricing.Resolve(p, in.Settings, in.ApplyMargin)
		if err != nil {
			return nil, err
		}

		tier := spec.Tier
		if !tier.Valid() {
			tier = pricing.TierNormal
		}
		lines = append(lines, Line{
			ProductID:     p.ID,
			Name:          p.Name,
			PointsPerUnit: p.PointsPerUnit,
			Quantity:      spec.Quantity,
			Tier:          tier,
			UnitPrice:     rp.ForTier(tier).Round(2),
		})
	}
	return lines, nil
}

func totals(lines []Line, shipping decimal.Decimal) (price, points decimal.Decimal) {
	price = shipping
	points = decimal.Zero
	for _, l := range lines {
		qty := decimal.NewFromInt(int64(l.Quantity))
		price = price.Add(l.UnitPrice.Mul(qty))
		points = points.Add(l.PointsPerUnit.Mul(qty))
	}
	return price, points
}
