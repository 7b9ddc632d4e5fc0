// Package pricing turns a catalog entry's stored foreign-currency base
// prices into the final sellable local prices. Resolution is a pure
// function over an immutable settings snapshot: no ambient state, no I/O.
package pricing

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// TargetAll is the wildcard discount target matching every product.
const TargetAll = "ALL"

// ErrRateUnavailable is returned when the exchange rate has not been
// loaded yet. Callers must show a loading state instead of a price;
// nothing may be sold or stored until a rate is known.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// ErrInvalidPercentage is returned when a discount percentage is outside
// the (0, 100] range.
var ErrInvalidPercentage = errors.New("discount percentage must be in (0, 100]")

// Discount targets either a single product by ID or every product via
// TargetAll. Percentage is in (0, 100].
type Discount struct {
	Target     string
	Percentage decimal.Decimal
}

// Settings is the immutable snapshot consumed by Resolve. ForeignMargin
// is a fixed design-time surcharge added to every foreign base price;
// LocalMargin is the staff-configurable local-currency surcharge that the
// invoice flow may toggle off per order. Discounts are consulted in
// stored order, first match wins.
type Settings struct {
	ExchangeRate  decimal.Decimal
	RateKnown     bool
	ForeignMargin decimal.Decimal
	LocalMargin   decimal.Decimal
	Discounts     []Discount
}

// WithRate returns a copy of s carrying the given exchange rate.
func (s Settings) WithRate(rate decimal.Decimal) Settings {
	s.ExchangeRate = rate
	s.RateKnown = true
	return s
}

// ValidatePercentage checks the (0, 100] discount invariant.
func ValidatePercentage(p decimal.Decimal) error {
	hundred := decimal.NewFromInt(100)
	if !p.IsPositive() || p.GreaterThan(hundred) {
		return ErrInvalidPercentage
	}
	return nil
}
