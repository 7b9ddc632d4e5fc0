package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madraim/shopdesk/internal/domain/catalog"
	"github.com/madraim/shopdesk/internal/domain/customer"
	"github.com/madraim/shopdesk/internal/domain/pricing"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

var fixedNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func testAssembler() *Assembler {
	n := 0
	return &Assembler{
		now: func() time.Time { return fixedNow },
		newID: func() string {
			n++
			return "order-" + string(rune('0'+n))
		},
	}
}

func testProducts() map[string]catalog.Product {
	return map[string]catalog.Product{
		"p1": {ID: "p1", Name: "Green Tea", BaseNormalPrice: dec("18"), BaseMemberPrice: dec("16"), PointsPerUnit: dec("1")},
		"p2": {ID: "p2", Name: "Teapot", BaseNormalPrice: dec("48"), BaseMemberPrice: dec("43"), PointsPerUnit: dec("5")},
	}
}

// Identity settings: rate 1, no margins, no discounts — frozen prices
// equal the base prices.
func identitySettings() pricing.Settings {
	return pricing.Settings{}.WithRate(decimal.NewFromInt(1))
}

func TestAssemble_TotalsAndFreeze(t *testing.T) {
	a := testAssembler()

	o, err := a.Assemble(AssembleInput{
		Specs: []LineSpec{
			{ProductID: "p1", Tier: pricing.TierNormal, Quantity: 2},
			{ProductID: "p2", Tier: pricing.TierMember, Quantity: 1},
		},
		Products:     testProducts(),
		Customer:     customer.Customer{ID: "c1", Name: "Ada"},
		ShippingCost: dec("61"),
		ApplyMargin:  true,
		Settings:     identitySettings(),
		SelectionID:  "sel-1",
	})
	require.NoError(t, err)

	require.Len(t, o.Lines, 2)
	assert.True(t, o.Lines[0].UnitPrice.Equal(dec("18")))
	assert.True(t, o.Lines[1].UnitPrice.Equal(dec("43")), "member tier must be frozen")

	// 2×18 + 43 + 61 shipping = 140; points 2×1 + 5 = 7.
	assert.True(t, o.TotalPrice.Equal(dec("140")), "total: %s", o.TotalPrice)
	assert.True(t, o.TotalPoints.Equal(dec("7")), "points: %s", o.TotalPoints)

	assert.Equal(t, "c1", o.CustomerID)
	assert.Equal(t, "Ada", o.CustomerName)
	assert.Equal(t, "sel-1", o.SelectionID)
	assert.True(t, o.MarginApplied)
	assert.Equal(t, fixedNow, o.CreatedAt)
}

func TestAssemble_RoundsAtFreezeBoundary(t *testing.T) {
	a := testAssembler()

	// 10.005 is exact until the freeze, where it rounds to 10.01 (round
	// half away from zero); the total uses the rounded unit price.
	products := map[string]catalog.Product{
		"p1": {ID: "p1", Name: "Odd", BaseNormalPrice: dec("10.005"), BaseMemberPrice: dec("10.005")},
	}

	o, err := a.Assemble(AssembleInput{
		Specs:    []LineSpec{{ProductID: "p1", Quantity: 2}},
		Products: products,
		Customer: customer.Customer{ID: "c1"},
		Settings: identitySettings(),
	})
	require.NoError(t, err)

	assert.True(t, o.Lines[0].UnitPrice.Equal(dec("10.01")), "unit: %s", o.Lines[0].UnitPrice)
	assert.True(t, o.TotalPrice.Equal(dec("20.02")), "total: %s", o.TotalPrice)
}

func TestAssemble_Validation(t *testing.T) {
	a := testAssembler()

	tests := []struct {
		name    string
		in      AssembleInput
		wantErr error
	}{
		{
			name:    "empty specs",
			in:      AssembleInput{Products: testProducts(), Settings: identitySettings()},
			wantErr: ErrEmptyLines,
		},
		{
			name: "zero quantity",
			in: AssembleInput{
				Specs:    []LineSpec{{ProductID: "p1", Quantity: 0}},
				Products: testProducts(),
				Settings: identitySettings(),
			},
			wantErr: ErrInvalidQuantity,
		},
		{
			name: "negative shipping",
			in: AssembleInput{
				Specs:        []LineSpec{{ProductID: "p1", Quantity: 1}},
				Products:     testProducts(),
				ShippingCost: dec("-1"),
				Settings:     identitySettings(),
			},
			wantErr: ErrNegativeShipping,
		},
		{
			name: "rate unavailable",
			in: AssembleInput{
				Specs:    []LineSpec{{ProductID: "p1", Quantity: 1}},
				Products: testProducts(),
				Settings: pricing.Settings{},
			},
			wantErr: pricing.ErrRateUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Assemble(tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestAssemble_UnknownProduct(t *testing.T) {
	a := testAssembler()

	_, err := a.Assemble(AssembleInput{
		Specs:    []LineSpec{{ProductID: "ghost", Quantity: 1}},
		Products: testProducts(),
		Settings: identitySettings(),
	})

	var unknown *UnknownProductError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "ghost", unknown.ProductID)
}

func TestReassemble_PreservesIdentity(t *testing.T) {
	a := testAssembler()

	existing := &Order{
		ID:          "order-keep",
		SelectionID: "sel-keep",
		CreatedAt:   fixedNow.Add(-48 * time.Hour),
	}

	o, err := a.Reassemble(existing, AssembleInput{
		Specs:       []LineSpec{{ProductID: "p1", Quantity: 3}},
		Products:    testProducts(),
		Customer:    customer.Customer{ID: "c1", Name: "Ada"},
		Settings:    identitySettings(),
		SelectionID: "sel-other", // must be ignored
	})
	require.NoError(t, err)

	assert.Equal(t, "order-keep", o.ID)
	assert.Equal(t, "sel-keep", o.SelectionID)
	assert.Equal(t, existing.CreatedAt, o.CreatedAt)
	assert.True(t, o.TotalPrice.Equal(dec("54")))
}
