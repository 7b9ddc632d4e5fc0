package settings

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madraim/shopdesk/internal/domain/catalog"
	"github.com/madraim/shopdesk/internal/domain/pricing"
	"github.com/madraim/shopdesk/internal/rates"
)

type memStore struct {
	stored Stored
	err    error
}

func (m *memStore) Get(context.Context) (Stored, error) { return m.stored, m.err }
func (m *memStore) Update(_ context.Context, s Stored) error {
	m.stored = s
	return nil
}

type fixedRate struct {
	rate decimal.Decimal
	err  error
}

func (f fixedRate) Current() (decimal.Decimal, error) { return f.rate, f.err }

func TestSnapshot(t *testing.T) {
	store := &memStore{stored: Stored{
		LocalMargin: decimal.NewFromInt(5),
		Discounts:   []pricing.Discount{{Target: "p1", Percentage: decimal.NewFromInt(10)}},
	}}
	src := NewSource(store, fixedRate{rate: decimal.NewFromInt(90)})

	snap, err := src.Snapshot(context.Background())
	require.NoError(t, err)

	assert.True(t, snap.RateKnown)
	assert.True(t, snap.ExchangeRate.Equal(decimal.NewFromInt(90)))
	assert.True(t, snap.ForeignMargin.Equal(foreignMargin))
	assert.True(t, snap.LocalMargin.Equal(decimal.NewFromInt(5)))
	require.Len(t, snap.Discounts, 1)
}

// A not-yet-loaded rate is a soft state, not an error: the snapshot
// carries RateKnown=false and resolution fails per call instead.
func TestSnapshot_RateUnavailable(t *testing.T) {
	src := NewSource(&memStore{}, fixedRate{err: rates.ErrUnavailable})

	snap, err := src.Snapshot(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.RateKnown)

	_, err = pricing.Resolve(catalog.Product{ID: "p1"}, snap, true)
	assert.ErrorIs(t, err, pricing.ErrRateUnavailable)
}

func TestSnapshot_StoreError(t *testing.T) {
	src := NewSource(&memStore{err: errors.New("store down")}, fixedRate{rate: decimal.NewFromInt(90)})

	_, err := src.Snapshot(context.Background())
	require.Error(t, err)
}

func TestSnapshot_RateSourceHardError(t *testing.T) {
	src := NewSource(&memStore{}, fixedRate{err: errors.New("unexpected")})

	_, err := src.Snapshot(context.Background())
	require.Error(t, err)
}
