package billing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("payment amount must be a positive number")
	ErrOverpayment   = errors.New("payment exceeds outstanding balance")
)

// AmountPaid sums recorded payment amounts.
func AmountPaid(payments []decimal.Decimal) decimal.Decimal {
	return decimal.Sum(decimal.Zero, payments...)
}

// Outstanding is the invoice total less everything already paid. It goes negative
// only if payments were recorded before an over-application guard existed.
func Outstanding(total decimal.Decimal, payments []decimal.Decimal) decimal.Decimal {
	return total.Sub(AmountPaid(payments))
}

// ParsePaymentAmount parses user input such as "137.50". Non-numeric, zero and
// negative inputs are rejected.
func ParsePaymentAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	return ValidatePaymentAmount(&amount)
}

// ValidatePaymentAmount checks an already decoded amount and rounds it to
// currency precision. Amounts that round to zero are rejected.
func ValidatePaymentAmount(amount *decimal.Decimal) (decimal.Decimal, error) {
	if amount == nil {
		return decimal.Zero, ErrInvalidAmount
	}
	rounded := amount.Round(CurrencyPlaces)
	if !rounded.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	return rounded, nil
}

// CheckPayment rejects a payment that would take the amount paid above total.
func CheckPayment(total, alreadyPaid, amount decimal.Decimal) error {
	remaining := total.Sub(alreadyPaid)
	if amount.GreaterThan(remaining) {
		return fmt.Errorf("%w: amount %s, outstanding %s", ErrOverpayment,
			amount.StringFixed(CurrencyPlaces), remaining.StringFixed(CurrencyPlaces))
	}
	return nil
}

// CheckTotalCoversPaid rejects a total that would drop below what was already paid.
func CheckTotalCoversPaid(total, alreadyPaid decimal.Decimal) error {
	if alreadyPaid.GreaterThan(total) {
		return fmt.Errorf("%w: total %s is below amount paid %s", ErrOverpayment,
			total.StringFixed(CurrencyPlaces), alreadyPaid.StringFixed(CurrencyPlaces))
	}
	return nil
}
