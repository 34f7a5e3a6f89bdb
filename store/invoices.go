package store

import (
	"context"
	"fmt"
	"time"

	"github.com/yourusername/clientbook/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Invoices struct {
	db *gorm.DB
}

type InvoiceFilter struct {
	ClientID  string               `form:"client_id"`
	ProjectID string               `form:"project_id"`
	Status    models.InvoiceStatus `form:"status"`
	Search    string               `form:"search"`
	Page
}

func (r *Invoices) repo() scoped[models.Invoice] {
	return scoped[models.Invoice]{db: r.db}
}

func (r *Invoices) List(ctx context.Context, orgID string, f InvoiceFilter) ([]models.Invoice, error) {
	q := r.db.WithContext(ctx).Where("org_id = ?", orgID)
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.ProjectID != "" {
		q = q.Where("project_id = ?", f.ProjectID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	q = search(q, f.Search, "invoice_number")
	var out []models.Invoice
	err := f.Page.apply(q).Preload("Client").Preload("Project").Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *Invoices) Get(ctx context.Context, orgID, id string) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id).
		Preload("Client").Preload("Project").First(&inv).Error
	if err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

// GetForUpdate loads the invoice row, locking it for the rest of the
// transaction on databases that support row locks.
func (r *Invoices) GetForUpdate(ctx context.Context, orgID, id string) (*models.Invoice, error) {
	q := r.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, id)
	if r.db.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var inv models.Invoice
	if err := q.First(&inv).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

// CheckReferences verifies that the client, and the project when given, belong to
// the organization and that the project belongs to the client.
func (r *Invoices) CheckReferences(ctx context.Context, orgID, clientID string, projectID *string) error {
	if err := mustExist(ctx, r.db, &models.Client{}, "client", orgID, clientID); err != nil {
		return err
	}
	if projectID == nil {
		return nil
	}
	var project models.Project
	err := r.db.WithContext(ctx).Where("org_id = ? AND id = ?", orgID, *projectID).First(&project).Error
	if err != nil {
		if translate(err) == ErrNotFound {
			return fmt.Errorf("%w: project %s", ErrInvalidReference, *projectID)
		}
		return err
	}
	if project.ClientID != clientID {
		return fmt.Errorf("%w: project %s does not belong to client %s", ErrInvalidReference, *projectID, clientID)
	}
	return nil
}

func (r *Invoices) Create(ctx context.Context, orgID string, inv *models.Invoice) error {
	inv.OrgID = orgID
	if err := r.CheckReferences(ctx, orgID, inv.ClientID, inv.ProjectID); err != nil {
		return err
	}
	if err := r.checkNumberFree(ctx, orgID, inv.InvoiceNumber, ""); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(inv).Error)
}

func (r *Invoices) checkNumberFree(ctx context.Context, orgID, number, exceptID string) error {
	q := r.db.WithContext(ctx).Model(&models.Invoice{}).Where("org_id = ? AND invoice_number = ?", orgID, number)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w: invoice number %s already exists", ErrConflict, number)
	}
	return nil
}

// Update writes raw column values. Money columns are owned by the invoicing
// service, which recomputes them before calling this.
func (r *Invoices) Update(ctx context.Context, orgID, id string, fields map[string]interface{}) (*models.Invoice, error) {
	if number, ok := fields["invoice_number"].(string); ok {
		if err := r.checkNumberFree(ctx, orgID, number, id); err != nil {
			return nil, err
		}
	}
	if _, err := r.repo().update(ctx, orgID, id, fields); err != nil {
		return nil, err
	}
	return r.Get(ctx, orgID, id)
}

// Delete refuses to remove an invoice with recorded payments. Line items are
// removed with the invoice and notes are detached.
func (r *Invoices) Delete(ctx context.Context, orgID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := scoped[models.Invoice]{db: tx}
		if _, err := repo.get(ctx, orgID, id); err != nil {
			return err
		}
		var payments int64
		if err := tx.Model(&models.Payment{}).Where("invoice_id = ?", id).Count(&payments).Error; err != nil {
			return err
		}
		if payments > 0 {
			return fmt.Errorf("%w: invoice has %d payments", ErrConflict, payments)
		}
		if err := tx.Where("invoice_id = ?", id).Delete(&models.InvoiceLineItem{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Note{}).Where("org_id = ? AND invoice_id = ?", orgID, id).
			Update("invoice_id", gorm.Expr("NULL")).Error; err != nil {
			return err
		}
		return repo.delete(ctx, orgID, id)
	})
}

func (r *Invoices) Count(ctx context.Context, orgID string, status models.InvoiceStatus) (int64, error) {
	if status == "" {
		return r.repo().count(ctx, orgID, nil)
	}
	return r.repo().count(ctx, orgID, "status = ?", status)
}

// MarkOverdue moves every sent invoice whose due date is before asOf to overdue,
// across all organizations.
func (r *Invoices) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", models.InvoiceSent, asOf).
		Updates(map[string]interface{}{"status": models.InvoiceOverdue})
	return res.RowsAffected, res.Error
}
