// Package settings assembles the immutable pricing snapshot consumed by
// the pricing pipeline: stored staff-editable settings plus the current
// exchange rate from its asynchronous source.
package settings

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/madraim/shopdesk/internal/domain/pricing"
	"github.com/madraim/shopdesk/internal/rates"
)

// foreignMargin is the fixed surcharge added to every foreign base price
// before conversion. Fixed at its design value, not user-editable.
var foreignMargin = decimal.NewFromInt(2)

// Stored is the staff-editable part of the pricing settings.
type Stored struct {
	LocalMargin decimal.Decimal
	Discounts   []pricing.Discount
}

// Store defines persistence for the single stored settings record.
type Store interface {
	Get(ctx context.Context) (Stored, error)
	Update(ctx context.Context, s Stored) error
}

// RateSource yields the current exchange rate, or rates.ErrUnavailable
// while none has been loaded yet.
type RateSource interface {
	Current() (decimal.Decimal, error)
}

// Source builds pricing snapshots on demand.
type Source struct {
	store Store
	rates RateSource
}

// NewSource creates a Source over the given store and rate source.
func NewSource(store Store, rs RateSource) *Source {
	return &Source{store: store, rates: rs}
}

// Snapshot returns the current pricing settings. An unavailable exchange
// rate is not an error here: the snapshot carries RateKnown=false and the
// pricing pipeline fails softly when asked to resolve with it.
func (s *Source) Snapshot(ctx context.Context) (pricing.Settings, error) {
	stored, err := s.store.Get(ctx)
	if err != nil {
		return pricing.Settings{}, errors.Wrap(err, "load settings")
	}

	out := pricing.Settings{
		ForeignMargin: foreignMargin,
		LocalMargin:   stored.LocalMargin,
		Discounts:     stored.Discounts,
	}
	rate, err := s.rates.Current()
	if err == nil {
		out = out.WithRate(rate)
	} else if !errors.Is(err, rates.ErrUnavailable) {
		return pricing.Settings{}, errors.Wrap(err, "current rate")
	}
	return out, nil
}
