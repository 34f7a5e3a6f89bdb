package store

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yourusername/clientbook/models"
	"gorm.io/gorm"
)

type Projects struct {
	db *gorm.DB
}

type ProjectFilter struct {
	ClientID string               `form:"client_id"`
	Status   models.ProjectStatus `form:"status"`
	Search   string               `form:"search"`
	Page
}

type ProjectPatch struct {
	ClientID    *string               `json:"client_id"`
	Name        *string               `json:"name" binding:"omitempty,min=1,max=255"`
	Description *string               `json:"description"`
	Status      *models.ProjectStatus `json:"status"`
	StartDate   *string               `json:"start_date"`
	EndDate     *string               `json:"end_date"`
	Budget      *decimal.Decimal      `json:"budget"`
	ClearBudget bool                  `json:"clear_budget"`
}

func (r *Projects) repo() scoped[models.Project] {
	return scoped[models.Project]{db: r.db}
}

func (r *Projects) List(ctx context.Context, orgID string, f ProjectFilter) ([]models.Project, error) {
	q := r.db.WithContext(ctx).Where("org_id = ?", orgID)
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	q = search(q, f.Search, "name", "description")
	var out []models.Project
	err := f.Page.apply(q).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *Projects) Get(ctx context.Context, orgID, id string) (*models.Project, error) {
	return r.repo().get(ctx, orgID, id)
}

func (r *Projects) Create(ctx context.Context, orgID string, p *models.Project) error {
	p.OrgID = orgID
	if p.Status == "" {
		p.Status = models.ProjectActive
	}
	if !p.Status.Valid() {
		return &ValidationError{Field: "status", Message: "unknown project status"}
	}
	if err := checkDateRange(p.StartDate, p.EndDate); err != nil {
		return err
	}
	if err := checkBudget(p.Budget); err != nil {
		return err
	}
	if err := mustExist(ctx, r.db, &models.Client{}, "client", orgID, p.ClientID); err != nil {
		return err
	}
	p.Description = Optional(p.Description)
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *Projects) Update(ctx context.Context, orgID, id string, patch ProjectPatch) (*models.Project, error) {
	current, err := r.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if patch.ClientID != nil {
		if err := mustExist(ctx, r.db, &models.Client{}, "client", orgID, *patch.ClientID); err != nil {
			return nil, err
		}
		fields["client_id"] = *patch.ClientID
	}
	if patch.Name != nil {
		fields["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		fields["description"] = nullable(*patch.Description)
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, &ValidationError{Field: "status", Message: "unknown project status"}
		}
		fields["status"] = *patch.Status
	}

	start, end := current.StartDate, current.EndDate
	if patch.StartDate != nil {
		if start, err = ParseDate("start_date", *patch.StartDate); err != nil {
			return nil, err
		}
		fields["start_date"] = start
	}
	if patch.EndDate != nil {
		if end, err = ParseDate("end_date", *patch.EndDate); err != nil {
			return nil, err
		}
		fields["end_date"] = end
	}
	if err := checkDateRange(start, end); err != nil {
		return nil, err
	}

	switch {
	case patch.ClearBudget:
		fields["budget"] = gorm.Expr("NULL")
	case patch.Budget != nil:
		if err := checkBudget(patch.Budget); err != nil {
			return nil, err
		}
		fields["budget"] = patch.Budget.Round(2)
	}
	return r.repo().update(ctx, orgID, id, fields)
}

// Delete detaches invoices and notes that reference the project.
func (r *Projects) Delete(ctx context.Context, orgID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := scoped[models.Project]{db: tx}
		if _, err := repo.get(ctx, orgID, id); err != nil {
			return err
		}
		for _, model := range []interface{}{&models.Invoice{}, &models.Note{}} {
			if err := tx.Model(model).Where("org_id = ? AND project_id = ?", orgID, id).
				Update("project_id", gorm.Expr("NULL")).Error; err != nil {
				return err
			}
		}
		return repo.delete(ctx, orgID, id)
	})
}

func (r *Projects) Count(ctx context.Context, orgID string, status models.ProjectStatus) (int64, error) {
	if status == "" {
		return r.repo().count(ctx, orgID, nil)
	}
	return r.repo().count(ctx, orgID, "status = ?", status)
}

func checkDateRange(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return &ValidationError{Field: "end_date", Message: "must not be before start_date"}
	}
	return nil
}

func checkBudget(b *decimal.Decimal) error {
	if b != nil && b.IsNegative() {
		return &ValidationError{Field: "budget", Message: "must not be negative"}
	}
	return nil
}
