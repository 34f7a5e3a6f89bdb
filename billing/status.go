package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yourusername/clientbook/models"
)

var (
	ErrInvalidStatus     = errors.New("unknown invoice status")
	ErrInvalidTransition = errors.New("invoice status transition not allowed")
	ErrUnsettled         = errors.New("invoice cannot be marked paid while a balance is outstanding")
	ErrInvoiceLocked     = errors.New("invoice is paid or cancelled and can no longer change")
)

var transitions = map[models.InvoiceStatus][]models.InvoiceStatus{
	models.InvoiceDraft:   {models.InvoiceSent, models.InvoicePaid, models.InvoiceCancelled},
	models.InvoiceSent:    {models.InvoiceDraft, models.InvoiceOverdue, models.InvoicePaid, models.InvoiceCancelled},
	models.InvoiceOverdue: {models.InvoiceSent, models.InvoicePaid, models.InvoiceCancelled},
}

// IsTerminal reports whether an invoice in status s is closed to edits.
func IsTerminal(s models.InvoiceStatus) bool {
	return s == models.InvoicePaid || s == models.InvoiceCancelled
}

// CheckTransition validates moving an invoice from one status to another.
// Reaching paid requires the outstanding balance to be settled.
func CheckTransition(from, to models.InvoiceStatus, outstanding decimal.Decimal) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if from == to {
		return nil
	}
	if IsTerminal(from) {
		return fmt.Errorf("%w: %s", ErrInvoiceLocked, from)
	}

	allowed := false
	for _, next := range transitions[from] {
		if next == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	if to == models.InvoicePaid && outstanding.IsPositive() {
		return fmt.Errorf("%w: %s due", ErrUnsettled, outstanding.StringFixed(CurrencyPlaces))
	}
	return nil
}

// CanAcceptPayment reports whether payments may be recorded in status s.
func CanAcceptPayment(s models.InvoiceStatus) error {
	if IsTerminal(s) {
		return fmt.Errorf("%w: %s", ErrInvoiceLocked, s)
	}
	return nil
}
