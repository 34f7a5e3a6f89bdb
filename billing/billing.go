// Package billing holds the invoice money model: line totals, invoice totals,
// payment reconciliation and the invoice status state machine. Every function is
// pure and works on fixed-point decimals so recomputation never drifts by a cent.
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyPlaces is the precision every stored money amount is rounded to.
const CurrencyPlaces = 2

var (
	ErrNegativeQuantity = errors.New("quantity must not be negative")
	ErrNegativePrice    = errors.New("unit price must not be negative")
	ErrNegativeTaxRate  = errors.New("tax rate must not be negative")
	ErrTaxRateTooHigh   = errors.New("tax rate must not exceed 100")
)

var hundred = decimal.NewFromInt(100)

// MaxTaxRate is the largest accepted tax rate, in percent.
var MaxTaxRate = hundred

// Normalize rounds a quantity, price or rate to the precision it is stored with.
// Totals must be computed from normalized inputs so that recomputing from the
// stored row gives the same result.
func Normalize(v decimal.Decimal) decimal.Decimal {
	return v.Round(CurrencyPlaces)
}

// CheckTaxRate rejects rates outside 0 to MaxTaxRate.
func CheckTaxRate(taxRate decimal.Decimal) error {
	if taxRate.IsNegative() {
		return ErrNegativeTaxRate
	}
	if taxRate.GreaterThan(MaxTaxRate) {
		return ErrTaxRateTooHigh
	}
	return nil
}

// Line is the part of a line item the totals depend on.
type Line struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Totals are the derived money fields of an invoice.
type Totals struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// RecomputeLineTotal returns quantity * unitPrice rounded to currency precision.
func RecomputeLineTotal(quantity, unitPrice decimal.Decimal) (decimal.Decimal, error) {
	if quantity.IsNegative() {
		return decimal.Zero, ErrNegativeQuantity
	}
	if unitPrice.IsNegative() {
		return decimal.Zero, ErrNegativePrice
	}
	return quantity.Mul(unitPrice).Round(CurrencyPlaces), nil
}

// RecomputeInvoiceTotals sums the line totals of items and applies taxRate, a
// percentage. The reduction is order independent.
func RecomputeInvoiceTotals(items []Line, taxRate decimal.Decimal) (Totals, error) {
	if err := CheckTaxRate(taxRate); err != nil {
		return Totals{}, err
	}

	subtotal := decimal.Zero
	for i, item := range items {
		lineTotal, err := RecomputeLineTotal(item.Quantity, item.UnitPrice)
		if err != nil {
			return Totals{}, fmt.Errorf("line %d: %w", i, err)
		}
		subtotal = subtotal.Add(lineTotal)
	}

	taxAmount := TaxAmount(subtotal, taxRate)
	return Totals{
		Subtotal:  subtotal,
		TaxAmount: taxAmount,
		Total:     subtotal.Add(taxAmount),
	}, nil
}

// TaxAmount returns subtotal * taxRate / 100 rounded to currency precision.
func TaxAmount(subtotal, taxRate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(taxRate).Div(hundred).Round(CurrencyPlaces)
}
