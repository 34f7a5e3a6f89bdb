package invoicing

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/yourusername/clientbook/billing"
	"github.com/yourusername/clientbook/models"
	"github.com/yourusername/clientbook/store"
)

// LinePatch is a partial line item update. LineTotal is never accepted from callers.
type LinePatch struct {
	Description *string          `json:"description" binding:"omitempty,min=1,max=1000"`
	Quantity    *decimal.Decimal `json:"quantity"`
	UnitPrice   *decimal.Decimal `json:"unit_price"`
}

func (s *Service) ListLineItems(ctx context.Context, orgID, invoiceID string) ([]models.InvoiceLineItem, error) {
	if _, err := s.store.Invoices.Get(ctx, orgID, invoiceID); err != nil {
		return nil, err
	}
	return s.store.LineItems.ListByInvoice(ctx, invoiceID)
}

// editable loads the invoice for update and refuses paid or cancelled invoices.
func editable(ctx context.Context, tx *store.Store, orgID, invoiceID string) (*models.Invoice, error) {
	inv, err := tx.Invoices.GetForUpdate(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	if billing.IsTerminal(inv.Status) {
		return nil, fmt.Errorf("%w: %s", billing.ErrInvoiceLocked, inv.Status)
	}
	return inv, nil
}

func (s *Service) AddLineItem(ctx context.Context, orgID, invoiceID string, in LineInput) (*models.InvoiceLineItem, error) {
	var item *models.InvoiceLineItem
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		inv, err := editable(ctx, tx, orgID, invoiceID)
		if err != nil {
			return err
		}
		if item, err = in.build(inv.ID); err != nil {
			return err
		}
		if err := tx.LineItems.Create(ctx, item); err != nil {
			return err
		}
		return s.persistTotals(ctx, tx, orgID, inv)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *Service) UpdateLineItem(ctx context.Context, orgID, itemID string, patch LinePatch) (*models.InvoiceLineItem, error) {
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		item, err := tx.LineItems.Get(ctx, orgID, itemID)
		if err != nil {
			return err
		}
		inv, err := editable(ctx, tx, orgID, item.InvoiceID)
		if err != nil {
			return err
		}

		fields := map[string]interface{}{}
		if patch.Description != nil {
			description := strings.TrimSpace(*patch.Description)
			if description == "" {
				return &store.ValidationError{Field: "description", Message: "is required"}
			}
			fields["description"] = description
		}
		qty, price := item.Quantity, item.UnitPrice
		if patch.Quantity != nil {
			qty = billing.Normalize(*patch.Quantity)
			fields["quantity"] = qty
		}
		if patch.UnitPrice != nil {
			price = billing.Normalize(*patch.UnitPrice)
			fields["unit_price"] = price
		}
		lineTotal, err := billing.RecomputeLineTotal(qty, price)
		if err != nil {
			return err
		}
		fields["line_total"] = lineTotal

		if err := tx.LineItems.Update(ctx, item.ID, fields); err != nil {
			return err
		}
		return s.persistTotals(ctx, tx, orgID, inv)
	})
	if err != nil {
		return nil, err
	}
	return s.store.LineItems.Get(ctx, orgID, itemID)
}

// DeleteLineItem removes the item and returns the parent invoice with its
// recomputed totals.
func (s *Service) DeleteLineItem(ctx context.Context, orgID, itemID string) (*models.Invoice, error) {
	var invoiceID string
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		item, err := tx.LineItems.Get(ctx, orgID, itemID)
		if err != nil {
			return err
		}
		inv, err := editable(ctx, tx, orgID, item.InvoiceID)
		if err != nil {
			return err
		}
		invoiceID = inv.ID
		if err := tx.LineItems.Delete(ctx, item.ID); err != nil {
			return err
		}
		return s.persistTotals(ctx, tx, orgID, inv)
	})
	if err != nil {
		return nil, err
	}
	return s.store.Invoices.Get(ctx, orgID, invoiceID)
}
