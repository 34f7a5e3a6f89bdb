package store

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/yourusername/clientbook/models"
	"gorm.io/gorm"
)

type Payments struct {
	db *gorm.DB
}

func (r *Payments) repo() scoped[models.Payment] {
	return scoped[models.Payment]{db: r.db}
}

func (r *Payments) ListByInvoice(ctx context.Context, orgID, invoiceID string) ([]models.Payment, error) {
	var out []models.Payment
	err := r.db.WithContext(ctx).Where("org_id = ? AND invoice_id = ?", orgID, invoiceID).
		Order("paid_at DESC").Find(&out).Error
	return out, err
}

// Amounts returns the amounts recorded against an invoice.
func (r *Payments) Amounts(ctx context.Context, orgID, invoiceID string) ([]decimal.Decimal, error) {
	payments, err := r.ListByInvoice(ctx, orgID, invoiceID)
	if err != nil {
		return nil, err
	}
	amounts := make([]decimal.Decimal, len(payments))
	for i, p := range payments {
		amounts[i] = p.Amount
	}
	return amounts, nil
}

// ReferenceUsed reports whether a payment with method and reference was already
// recorded in the organization.
func (r *Payments) ReferenceUsed(ctx context.Context, orgID, method, reference string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("org_id = ? AND method = ? AND reference = ?", orgID, method, reference).Count(&n).Error
	return n > 0, err
}

func (r *Payments) Get(ctx context.Context, orgID, id string) (*models.Payment, error) {
	return r.repo().get(ctx, orgID, id)
}

func (r *Payments) Create(ctx context.Context, orgID string, p *models.Payment) error {
	p.OrgID = orgID
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *Payments) Delete(ctx context.Context, orgID, id string) error {
	return r.repo().delete(ctx, orgID, id)
}
