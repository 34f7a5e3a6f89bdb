package invoicing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/clientbook/billing"
	"github.com/yourusername/clientbook/metrics"
	"github.com/yourusername/clientbook/models"
	"github.com/yourusername/clientbook/store"
)

// PaymentInput describes a payment to record. Amount is validated before any
// database access.
type PaymentInput struct {
	Amount    *decimal.Decimal
	Method    string
	Reference *string
	PaidAt    *time.Time
	CreatedBy string
}

func (s *Service) ListPayments(ctx context.Context, orgID, invoiceID string) ([]models.Payment, error) {
	if _, err := s.store.Invoices.Get(ctx, orgID, invoiceID); err != nil {
		return nil, err
	}
	return s.store.Payments.ListByInvoice(ctx, orgID, invoiceID)
}

// RecordPayment stores a payment against an invoice. Payments that would exceed
// the outstanding balance are rejected, and a payment that settles the balance
// moves the invoice to paid.
func (s *Service) RecordPayment(ctx context.Context, orgID, invoiceID string, in PaymentInput) (*models.Payment, error) {
	amount, err := billing.ValidatePaymentAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	method := strings.ToLower(strings.TrimSpace(in.Method))
	if method == "" {
		method = models.MethodEFT
	}
	if !models.ValidPaymentMethod(method) {
		return nil, &store.ValidationError{Field: "method", Message: fmt.Sprintf("unknown payment method %q", in.Method)}
	}
	reference := store.Optional(in.Reference)

	if method == models.MethodStellar && reference != nil {
		hash := strings.ToLower(*reference)
		reference = &hash
	}
	if method == models.MethodStellar && s.verifier != nil {
		if reference == nil {
			return nil, &store.ValidationError{Field: "reference", Message: "a transaction hash is required for stellar payments"}
		}
		if err := s.checkReferenceUnused(ctx, s.store, orgID, method, *reference); err != nil {
			return nil, err
		}
		if err := s.verifier.VerifyPayment(ctx, *reference, amount); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnverifiedPayment, err)
		}
	}

	paidAt := s.now()
	if in.PaidAt != nil {
		paidAt = in.PaidAt.UTC()
	}

	payment := &models.Payment{
		InvoiceID: invoiceID,
		Amount:    amount,
		Method:    method,
		Reference: reference,
		PaidAt:    paidAt,
	}
	if in.CreatedBy != "" {
		createdBy := in.CreatedBy
		payment.CreatedBy = &createdBy
	}

	var settled bool
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		inv, err := tx.Invoices.GetForUpdate(ctx, orgID, invoiceID)
		if err != nil {
			return err
		}
		if err := billing.CanAcceptPayment(inv.Status); err != nil {
			return err
		}
		paid, err := s.amountPaid(ctx, tx, orgID, invoiceID)
		if err != nil {
			return err
		}
		if err := billing.CheckPayment(inv.Total, paid, amount); err != nil {
			return err
		}
		if method == models.MethodStellar && reference != nil {
			if err := s.checkReferenceUnused(ctx, tx, orgID, method, *reference); err != nil {
				return err
			}
		}
		if err := tx.Payments.Create(ctx, orgID, payment); err != nil {
			return err
		}

		if !inv.Total.Sub(paid.Add(amount)).IsPositive() {
			settled = true
			_, err = tx.Invoices.Update(ctx, orgID, invoiceID, map[string]interface{}{"status": models.InvoicePaid})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordPayment(method, amount)
	s.log.WithFields(logrus.Fields{
		"org_id":     orgID,
		"invoice_id": invoiceID,
		"amount":     amount.StringFixed(2),
		"method":     method,
		"settled":    settled,
	}).Info("payment recorded")
	return payment, nil
}

// checkReferenceUnused refuses a ledger transaction that already settled a payment
// in the organization.
func (s *Service) checkReferenceUnused(ctx context.Context, st *store.Store, orgID, method, reference string) error {
	used, err := st.Payments.ReferenceUsed(ctx, orgID, method, reference)
	if err != nil {
		return err
	}
	if used {
		return fmt.Errorf("%w: transaction %s is already recorded", store.ErrConflict, reference)
	}
	return nil
}

// DeletePayment removes a payment from an invoice that is still open.
func (s *Service) DeletePayment(ctx context.Context, orgID, paymentID string) (*models.Invoice, error) {
	var invoiceID string
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		payment, err := tx.Payments.Get(ctx, orgID, paymentID)
		if err != nil {
			return err
		}
		inv, err := editable(ctx, tx, orgID, payment.InvoiceID)
		if err != nil {
			return err
		}
		invoiceID = inv.ID
		return tx.Payments.Delete(ctx, orgID, paymentID)
	})
	if err != nil {
		return nil, err
	}
	return s.store.Invoices.Get(ctx, orgID, invoiceID)
}
