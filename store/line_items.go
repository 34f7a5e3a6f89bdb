package store

import (
	"context"

	"github.com/yourusername/clientbook/models"
	"gorm.io/gorm"
)

// LineItems has no org_id column of its own; ownership comes from the parent invoice.
type LineItems struct {
	db *gorm.DB
}

func (r *LineItems) ListByInvoice(ctx context.Context, invoiceID string) ([]models.InvoiceLineItem, error) {
	var out []models.InvoiceLineItem
	err := r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *LineItems) Get(ctx context.Context, orgID, id string) (*models.InvoiceLineItem, error) {
	var item models.InvoiceLineItem
	err := r.db.WithContext(ctx).
		Joins("JOIN invoices ON invoices.id = invoice_line_items.invoice_id").
		Where("invoices.org_id = ? AND invoice_line_items.id = ?", orgID, id).
		First(&item).Error
	if err != nil {
		return nil, translate(err)
	}
	return &item, nil
}

func (r *LineItems) Create(ctx context.Context, item *models.InvoiceLineItem) error {
	return translate(r.db.WithContext(ctx).Create(item).Error)
}

func (r *LineItems) Update(ctx context.Context, id string, fields map[string]interface{}) error {
	return translate(r.db.WithContext(ctx).Model(&models.InvoiceLineItem{}).Where("id = ?", id).Updates(fields).Error)
}

func (r *LineItems) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.InvoiceLineItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
