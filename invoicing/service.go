// Package invoicing runs the invoice lifecycle: every write that can change an
// invoice's money fields recomputes and persists them in the same transaction.
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

// PaymentVerifier confirms that an on-ledger payment reference is genuine.
type PaymentVerifier interface {
	VerifyPayment(ctx context.Context, reference string, amount decimal.Decimal) error
}

type Service struct {
	store    *store.Store
	verifier PaymentVerifier
	log      *logrus.Logger
	now      func() time.Time
}

// NewService builds the service. A nil verifier skips on-ledger verification.
func NewService(s *store.Store, verifier PaymentVerifier, log *logrus.Logger) *Service {
	return &Service{
		store:    s,
		verifier: verifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Detail is an invoice with its line items, payments and reconciliation.
type Detail struct {
	Invoice     models.Invoice           `json:"invoice"`
	LineItems   []models.InvoiceLineItem `json:"line_items"`
	Payments    []models.Payment         `json:"payments"`
	AmountPaid  decimal.Decimal          `json:"amount_paid"`
	Outstanding decimal.Decimal          `json:"outstanding"`
}

func (s *Service) List(ctx context.Context, orgID string, f store.InvoiceFilter) ([]models.Invoice, error) {
	return s.store.Invoices.List(ctx, orgID, f)
}

func (s *Service) Get(ctx context.Context, orgID, id string) (*models.Invoice, error) {
	return s.store.Invoices.Get(ctx, orgID, id)
}

func (s *Service) Detail(ctx context.Context, orgID, id string) (*Detail, error) {
	inv, err := s.store.Invoices.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	items, err := s.store.LineItems.ListByInvoice(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load line items: %w", err)
	}
	payments, err := s.store.Payments.ListByInvoice(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}

	amounts := make([]decimal.Decimal, len(payments))
	for i, p := range payments {
		amounts[i] = p.Amount
	}
	return &Detail{
		Invoice:     *inv,
		LineItems:   items,
		Payments:    payments,
		AmountPaid:  billing.AmountPaid(amounts),
		Outstanding: billing.Outstanding(inv.Total, amounts),
	}, nil
}

// LineInput describes a new line item.
type LineInput struct {
	Description string          `json:"description" binding:"required,max=1000"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (in LineInput) build(invoiceID string) (*models.InvoiceLineItem, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, &store.ValidationError{Field: "description", Message: "is required"}
	}
	qty, price := billing.Normalize(in.Quantity), billing.Normalize(in.UnitPrice)
	lineTotal, err := billing.RecomputeLineTotal(qty, price)
	if err != nil {
		return nil, err
	}
	return &models.InvoiceLineItem{
		InvoiceID:   invoiceID,
		Description: description,
		Quantity:    qty,
		UnitPrice:   price,
		LineTotal:   lineTotal,
	}, nil
}

// CreateInput describes a new invoice. Money fields are derived from LineItems.
type CreateInput struct {
	ClientID      string
	ProjectID     *string
	InvoiceNumber string
	IssueDate     time.Time
	DueDate       time.Time
	Status        models.InvoiceStatus
	TaxRate       decimal.Decimal
	Notes         *string
	LineItems     []LineInput
}

func (s *Service) CreateInvoice(ctx context.Context, orgID string, in CreateInput) (*Detail, error) {
	number := strings.TrimSpace(in.InvoiceNumber)
	if number == "" {
		return nil, &store.ValidationError{Field: "invoice_number", Message: "is required"}
	}
	if in.DueDate.Before(in.IssueDate) {
		return nil, &store.ValidationError{Field: "due_date", Message: "must not be before issue_date"}
	}
	if in.Status == "" {
		in.Status = models.InvoiceDraft
	}

	lines := make([]billing.Line, len(in.LineItems))
	for i, li := range in.LineItems {
		lines[i] = billing.Line{Quantity: billing.Normalize(li.Quantity), UnitPrice: billing.Normalize(li.UnitPrice)}
	}
	taxRate := billing.Normalize(in.TaxRate)
	totals, err := billing.RecomputeInvoiceTotals(lines, taxRate)
	if err != nil {
		return nil, err
	}
	if err := billing.CheckTransition(models.InvoiceDraft, in.Status, totals.Total); err != nil {
		return nil, err
	}

	inv := &models.Invoice{
		ClientID:      in.ClientID,
		ProjectID:     store.Optional(in.ProjectID),
		InvoiceNumber: number,
		IssueDate:     in.IssueDate,
		DueDate:       in.DueDate,
		Status:        in.Status,
		TaxRate:       taxRate,
		Subtotal:      totals.Subtotal,
		TaxAmount:     totals.TaxAmount,
		Total:         totals.Total,
		Notes:         store.Optional(in.Notes),
	}

	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.Invoices.Create(ctx, orgID, inv); err != nil {
			return err
		}
		for _, li := range in.LineItems {
			item, err := li.build(inv.ID)
			if err != nil {
				return err
			}
			if err := tx.LineItems.Create(ctx, item); err != nil {
				return fmt.Errorf("create line item: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordInvoiceCreated()
	s.log.WithFields(logrus.Fields{"org_id": orgID, "invoice_id": inv.ID, "total": inv.Total.StringFixed(2)}).
		Info("invoice created")
	return s.Detail(ctx, orgID, inv.ID)
}

// UpdateInput is a partial update. An empty ProjectID detaches the project.
type UpdateInput struct {
	ClientID      *string
	ProjectID     *string
	InvoiceNumber *string
	IssueDate     *time.Time
	DueDate       *time.Time
	Status        *models.InvoiceStatus
	TaxRate       *decimal.Decimal
	Notes         *string
}

// onlyNotes reports whether the update touches nothing but the free-text notes,
// the one edit still allowed on a paid or cancelled invoice.
func (in UpdateInput) onlyNotes(current models.InvoiceStatus) bool {
	return in.ClientID == nil && in.ProjectID == nil && in.InvoiceNumber == nil &&
		in.IssueDate == nil && in.DueDate == nil && in.TaxRate == nil &&
		(in.Status == nil || *in.Status == current)
}

func (s *Service) UpdateInvoice(ctx context.Context, orgID, id string, in UpdateInput) (*models.Invoice, error) {
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		inv, err := tx.Invoices.GetForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		if billing.IsTerminal(inv.Status) && !in.onlyNotes(inv.Status) {
			return fmt.Errorf("%w: %s", billing.ErrInvoiceLocked, inv.Status)
		}

		fields := map[string]interface{}{}

		clientID, projectID := inv.ClientID, inv.ProjectID
		if in.ClientID != nil {
			clientID = *in.ClientID
			fields["client_id"] = clientID
		}
		if in.ProjectID != nil {
			projectID = store.Optional(in.ProjectID)
			fields["project_id"] = projectID
		}
		if in.ClientID != nil || in.ProjectID != nil {
			if err := tx.Invoices.CheckReferences(ctx, orgID, clientID, projectID); err != nil {
				return err
			}
		}

		if in.InvoiceNumber != nil {
			number := strings.TrimSpace(*in.InvoiceNumber)
			if number == "" {
				return &store.ValidationError{Field: "invoice_number", Message: "is required"}
			}
			fields["invoice_number"] = number
		}

		issue, due := inv.IssueDate, inv.DueDate
		if in.IssueDate != nil {
			issue = *in.IssueDate
			fields["issue_date"] = issue
		}
		if in.DueDate != nil {
			due = *in.DueDate
			fields["due_date"] = due
		}
		if due.Before(issue) {
			return &store.ValidationError{Field: "due_date", Message: "must not be before issue_date"}
		}

		if in.Notes != nil {
			fields["notes"] = store.Optional(in.Notes)
		}

		paid, err := s.amountPaid(ctx, tx, orgID, id)
		if err != nil {
			return err
		}

		total := inv.Total
		if in.TaxRate != nil {
			rate := billing.Normalize(*in.TaxRate)
			totals, err := s.totalsFor(ctx, tx, id, rate)
			if err != nil {
				return err
			}
			if err := billing.CheckTotalCoversPaid(totals.Total, paid); err != nil {
				return err
			}
			fields["tax_rate"] = rate
			fields["subtotal"] = totals.Subtotal
			fields["tax_amount"] = totals.TaxAmount
			fields["total"] = totals.Total
			total = totals.Total
		}

		if in.Status != nil {
			if err := billing.CheckTransition(inv.Status, *in.Status, total.Sub(paid)); err != nil {
				return err
			}
			fields["status"] = *in.Status
		}

		_, err = tx.Invoices.Update(ctx, orgID, id, fields)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.store.Invoices.Get(ctx, orgID, id)
}

func (s *Service) DeleteInvoice(ctx context.Context, orgID, id string) error {
	return s.store.Invoices.Delete(ctx, orgID, id)
}

// Recalculate recomputes every line total and the invoice totals from stored
// quantities and prices.
func (s *Service) Recalculate(ctx context.Context, orgID, id string) (*models.Invoice, error) {
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		inv, err := tx.Invoices.GetForUpdate(ctx, orgID, id)
		if err != nil {
			return err
		}
		items, err := tx.LineItems.ListByInvoice(ctx, id)
		if err != nil {
			return err
		}
		for _, item := range items {
			lineTotal, err := billing.RecomputeLineTotal(item.Quantity, item.UnitPrice)
			if err != nil {
				return err
			}
			if !lineTotal.Equal(item.LineTotal) {
				s.log.WithFields(logrus.Fields{"line_item_id": item.ID, "stored": item.LineTotal.String(), "computed": lineTotal.String()}).
					Warn("line total drift corrected")
				if err := tx.LineItems.Update(ctx, item.ID, map[string]interface{}{"line_total": lineTotal}); err != nil {
					return err
				}
			}
		}
		return s.persistTotals(ctx, tx, orgID, inv)
	})
	if err != nil {
		return nil, err
	}
	return s.store.Invoices.Get(ctx, orgID, id)
}

// MarkOverdue flags sent invoices whose due date passed before the start of
// asOf's day.
func (s *Service) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	asOf = asOf.UTC()
	startOfDay := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	n, err := s.store.Invoices.MarkOverdue(ctx, startOfDay)
	if err != nil {
		return 0, fmt.Errorf("mark overdue: %w", err)
	}
	metrics.RecordOverdueSweep(n)
	if n > 0 {
		s.log.WithField("count", n).Info("invoices marked overdue")
	}
	return n, nil
}

func (s *Service) totalsFor(ctx context.Context, tx *store.Store, invoiceID string, taxRate decimal.Decimal) (billing.Totals, error) {
	items, err := tx.LineItems.ListByInvoice(ctx, invoiceID)
	if err != nil {
		return billing.Totals{}, err
	}
	lines := make([]billing.Line, len(items))
	for i, item := range items {
		lines[i] = billing.Line{Quantity: item.Quantity, UnitPrice: item.UnitPrice}
	}
	return billing.RecomputeInvoiceTotals(lines, taxRate)
}

func (s *Service) amountPaid(ctx context.Context, tx *store.Store, orgID, invoiceID string) (decimal.Decimal, error) {
	amounts, err := tx.Payments.Amounts(ctx, orgID, invoiceID)
	if err != nil {
		return decimal.Zero, err
	}
	return billing.AmountPaid(amounts), nil
}

// persistTotals recomputes inv's totals from its stored line items and writes
// them, refusing a total below what has already been paid.
func (s *Service) persistTotals(ctx context.Context, tx *store.Store, orgID string, inv *models.Invoice) error {
	totals, err := s.totalsFor(ctx, tx, inv.ID, inv.TaxRate)
	if err != nil {
		return err
	}
	paid, err := s.amountPaid(ctx, tx, orgID, inv.ID)
	if err != nil {
		return err
	}
	if err := billing.CheckTotalCoversPaid(totals.Total, paid); err != nil {
		return err
	}
	_, err = tx.Invoices.Update(ctx, orgID, inv.ID, map[string]interface{}{
		"subtotal":   totals.Subtotal,
		"tax_amount": totals.TaxAmount,
		"total":      totals.Total,
	})
	return err
}
