package rates

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedSource struct {
	responses []func() (decimal.Decimal, error)
	calls     int
}

func (s *scriptedSource) Fetch(context.Context) (decimal.Decimal, error) {
	i := s.calls
	if i >= len(s.responses) {
		i = len(s.responses) - 1
	}
	s.calls++
	return s.responses[i]()
}

func ok(rate string) func() (decimal.Decimal, error) {
	return func() (decimal.Decimal, error) {
		return decimal.NewFromString(rate)
	}
}

func fail() func() (decimal.Decimal, error) {
	return func() (decimal.Decimal, error) {
		return decimal.Zero, errors.New("collaborator down")
	}
}

func TestCache_UnavailableBeforeFirstFetch(t *testing.T) {
	c := NewCache(&scriptedSource{responses: []func() (decimal.Decimal, error){ok("90")}}, time.Hour, nil)

	_, err := c.Current()
	assert.ErrorIs(t, err, ErrUnavailable)

	_, loaded := c.FetchedAt()
	assert.False(t, loaded)
}

func TestCache_RefreshStoresRate(t *testing.T) {
	src := &scriptedSource{responses: []func() (decimal.Decimal, error){ok("90")}}
	c := NewCache(src, time.Hour, nil)

	c.Refresh(context.Background())

	got, err := c.Current()
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(90)))

	fetchedAt, loaded := c.FetchedAt()
	require.True(t, loaded)
	assert.WithinDuration(t, time.Now(), fetchedAt, time.Minute)
}

func TestCache_FailureKeepsLastRate(t *testing.T) {
	src := &scriptedSource{responses: []func() (decimal.Decimal, error){ok("90"), fail()}}
	c := NewCache(src, time.Hour, nil)

	c.Refresh(context.Background())
	c.Refresh(context.Background())

	got, err := c.Current()
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(90)), "stale rate must keep serving")
}

func TestCache_FailureBeforeFirstSuccessStaysUnavailable(t *testing.T) {
	src := &scriptedSource{responses: []func() (decimal.Decimal, error){fail()}}
	c := NewCache(src, time.Hour, nil)

	c.Refresh(context.Background())

	_, err := c.Current()
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestCache_RunStopsOnCancel(t *testing.T) {
	src := &scriptedSource{responses: []func() (decimal.Decimal, error){ok("90")}}
	c := NewCache(src, time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, c.Run(ctx))
	assert.GreaterOrEqual(t, src.calls, 1)
}
