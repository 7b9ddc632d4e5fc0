package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/madraim/shopdesk/internal/domain/catalog"
)

var hundred = decimal.NewFromInt(100)

// Tier selects between the normal and member price variants of a product.
type Tier string

const (
	TierNormal Tier = "normal"
	TierMember Tier = "member"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierNormal || t == TierMember
}

// ResolvedPrice holds the two sellable prices for a product plus discount
// annotations. Original prices are set only when a discount applied, so
// the pre-discount value can be rendered struck through. Values are exact;
// rounding to the currency's minor unit happens at render or freeze time.
type ResolvedPrice struct {
	Final       decimal.Decimal
	FinalMember decimal.Decimal

	Discounted         bool
	DiscountPercentage decimal.Decimal
	Original           decimal.Decimal
	OriginalMember     decimal.Decimal
}

// ForTier returns the final price for the given tier.
func (r ResolvedPrice) ForTier(t Tier) decimal.Decimal {
	if t == TierMember {
		return r.FinalMember
	}
	return r.Final
}

// Resolve computes the sellable prices for a catalog entry from a settings
// snapshot. The pipeline order is fixed — foreign margin, conversion,
// optional local margin, clamp, discount — because each step changes the
// rounding surface. Both tiers run the identical pipeline independently;
// a matching discount applies to both.
//
// Returns ErrRateUnavailable when the snapshot carries no exchange rate.
func Resolve(entry catalog.Product, s Settings, applyMargin bool) (ResolvedPrice, error) {
	if !s.RateKnown {
		return ResolvedPrice{}, ErrRateUnavailable
	}

	normal := resolveTier(entry.BaseNormalPrice, s, applyMargin)
	member := resolveTier(entry.BaseMemberPrice, s, applyMargin)

	rp := ResolvedPrice{Final: normal, FinalMember: member}

	if d, ok := FindDiscount(entry.ID, s.Discounts); ok {
		rp.Discounted = true
		rp.DiscountPercentage = d.Percentage
		rp.Original = normal
		rp.OriginalMember = member
		factor := hundred.Sub(d.Percentage).Div(hundred)
		rp.Final = normal.Mul(factor)
		rp.FinalMember = member.Mul(factor)
	}

	return rp, nil
}

// resolveTier runs a single base price through the margin/conversion
// pipeline and clamps negative results (large negative margins) to zero.
func resolveTier(base decimal.Decimal, s Settings, applyMargin bool) decimal.Decimal {
	adjusted := base.Add(s.ForeignMargin)
	local := adjusted.Mul(s.ExchangeRate)
	if applyMargin {
		local = local.Add(s.LocalMargin)
	}
	if local.IsNegative() {
		return decimal.Zero
	}
	return local
}
