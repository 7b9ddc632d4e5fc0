package pricing

import "github.com/shopspring/decimal"

// FindDiscount scans the discount list in its stored order and returns the
// first entry targeting the given product ID or the TargetAll wildcard.
// List order, not specificity, determines precedence: a leading ALL entry
// shadows a later product-specific one. That first-match contract is
// load-bearing — regression-tested, do not replace with best-match.
func FindDiscount(productID string, discounts []Discount) (Discount, bool) {
	for _, d := range discounts {
		if d.Target == productID || d.Target == TargetAll {
			return d, true
		}
	}
	return Discount{}, false
}

// AddDiscount validates the percentage and appends the discount to the
// list. No dedup: a second entry for the same target is legal, just
// unreachable under first-match.
func AddDiscount(discounts []Discount, target string, percentage decimal.Decimal) ([]Discount, error) {
	if err := ValidatePercentage(percentage); err != nil {
		return discounts, err
	}
	return append(discounts, Discount{Target: target, Percentage: percentage}), nil
}

// RemoveDiscount removes the first entry matching the given target key and
// reports whether anything was removed.
func RemoveDiscount(discounts []Discount, target string) ([]Discount, bool) {
	for i, d := range discounts {
		if d.Target == target {
			return append(discounts[:i:i], discounts[i+1:]...), true
		}
	}
	return discounts, false
}
