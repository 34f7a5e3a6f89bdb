package billing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRecomputeLineTotal(t *testing.T) {
	tests := []struct {
		name     string
		qty      string
		price    string
		expected string
		err      error
	}{
		{name: "Whole Numbers", qty: "2", price: "50.00", expected: "100.00"},
		{name: "Fractional Quantity", qty: "1.5", price: "80", expected: "120.00"},
		{name: "Rounds Half Up", qty: "3", price: "0.335", expected: "1.01"},
		{name: "Zero Quantity", qty: "0", price: "99.99", expected: "0.00"},
		{name: "Negative Quantity", qty: "-1", price: "10", err: ErrNegativeQuantity},
		{name: "Negative Price", qty: "1", price: "-10", err: ErrNegativePrice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, err := RecomputeLineTotal(d(tt.qty), d(tt.price))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, total.StringFixed(2))
			assert.True(t, total.Equal(d(tt.qty).Mul(d(tt.price)).Round(2)))
		})
	}
}

func TestRecomputeInvoiceTotals(t *testing.T) {
	items := []Line{
		{Quantity: d("2"), UnitPrice: d("50.00")},
		{Quantity: d("1"), UnitPrice: d("25.00")},
	}

	t.Run("Reference Invoice", func(t *testing.T) {
		totals, err := RecomputeInvoiceTotals(items, d("10"))
		require.NoError(t, err)
		assert.Equal(t, "125.00", totals.Subtotal.StringFixed(2))
		assert.Equal(t, "12.50", totals.TaxAmount.StringFixed(2))
		assert.Equal(t, "137.50", totals.Total.StringFixed(2))
	})

	t.Run("Empty Invoice", func(t *testing.T) {
		totals, err := RecomputeInvoiceTotals(nil, d("15"))
		require.NoError(t, err)
		assert.True(t, totals.Subtotal.IsZero())
		assert.True(t, totals.TaxAmount.IsZero())
		assert.True(t, totals.Total.IsZero())
	})

	t.Run("Zero Tax Rate", func(t *testing.T) {
		totals, err := RecomputeInvoiceTotals(items, decimal.Zero)
		require.NoError(t, err)
		assert.True(t, totals.TaxAmount.IsZero())
		assert.True(t, totals.Total.Equal(totals.Subtotal))
	})

	t.Run("Order Independent And Idempotent", func(t *testing.T) {
		reversed := []Line{items[1], items[0]}
		first, err := RecomputeInvoiceTotals(items, d("7.25"))
		require.NoError(t, err)
		second, err := RecomputeInvoiceTotals(reversed, d("7.25"))
		require.NoError(t, err)
		third, err := RecomputeInvoiceTotals(items, d("7.25"))
		require.NoError(t, err)
		assert.True(t, first.Total.Equal(second.Total))
		assert.True(t, first.Total.Equal(third.Total))
		assert.True(t, first.TaxAmount.Equal(third.TaxAmount))
	})

	t.Run("No Cent Drift", func(t *testing.T) {
		var many []Line
		for i := 0; i < 1000; i++ {
			many = append(many, Line{Quantity: d("1"), UnitPrice: d("0.10")})
		}
		totals, err := RecomputeInvoiceTotals(many, decimal.Zero)
		require.NoError(t, err)
		assert.Equal(t, "100.00", totals.Subtotal.StringFixed(2))
	})

	t.Run("Negative Tax Rate", func(t *testing.T) {
		_, err := RecomputeInvoiceTotals(items, d("-1"))
		assert.ErrorIs(t, err, ErrNegativeTaxRate)
	})

	t.Run("Tax Rate Above 100", func(t *testing.T) {
		_, err := RecomputeInvoiceTotals(items, d("100.01"))
		assert.ErrorIs(t, err, ErrTaxRateTooHigh)

		totals, err := RecomputeInvoiceTotals(items, d("100"))
		require.NoError(t, err)
		assert.Equal(t, "250.00", totals.Total.StringFixed(2))
	})

	t.Run("Negative Line", func(t *testing.T) {
		_, err := RecomputeInvoiceTotals([]Line{{Quantity: d("-2"), UnitPrice: d("1")}}, decimal.Zero)
		assert.ErrorIs(t, err, ErrNegativeQuantity)
	})

	t.Run("Total Is Subtotal Plus Tax", func(t *testing.T) {
		totals, err := RecomputeInvoiceTotals(items, d("8.875"))
		require.NoError(t, err)
		assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.TaxAmount)))
		expected := totals.Subtotal.Add(totals.Subtotal.Mul(d("8.875")).Div(d("100")))
		assert.True(t, totals.Total.Sub(expected).Abs().LessThanOrEqual(d("0.005")))
	})
}

func TestNormalizeMatchesStoredPrecision(t *testing.T) {
	qty, price := Normalize(d("1.005")), Normalize(d("100"))
	assert.Equal(t, "1.01", qty.String())

	total, err := RecomputeLineTotal(qty, price)
	require.NoError(t, err)
	assert.True(t, total.Equal(qty.Mul(price)), "line total must equal the stored quantity times price")
}
