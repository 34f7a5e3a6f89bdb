package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/yourusername/clientbook/models"
	"gorm.io/gorm"
)

type Clients struct {
	db *gorm.DB
}

type ClientFilter struct {
	Search string `form:"search"`
	Page
}

// ClientPatch carries a partial update. An empty optional string clears the field.
type ClientPatch struct {
	Name    *string `json:"name" binding:"omitempty,min=1,max=255"`
	Email   *string `json:"email" binding:"omitempty,email|len=0"`
	Phone   *string `json:"phone"`
	Company *string `json:"company"`
	Address *string `json:"address"`
	Notes   *string `json:"notes"`
}

func (p ClientPatch) fields() map[string]interface{} {
	fields := map[string]interface{}{}
	if p.Name != nil {
		fields["name"] = strings.TrimSpace(*p.Name)
	}
	for col, v := range map[string]*string{
		"email": p.Email, "phone": p.Phone, "company": p.Company, "address": p.Address, "notes": p.Notes,
	} {
		if v != nil {
			fields[col] = nullable(*v)
		}
	}
	return fields
}

func (r *Clients) repo() scoped[models.Client] {
	return scoped[models.Client]{db: r.db}
}

func (r *Clients) List(ctx context.Context, orgID string, f ClientFilter) ([]models.Client, error) {
	q := r.db.WithContext(ctx).Where("org_id = ?", orgID)
	q = search(q, f.Search, "name", "email", "company")
	var out []models.Client
	err := f.Page.apply(q).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *Clients) Get(ctx context.Context, orgID, id string) (*models.Client, error) {
	return r.repo().get(ctx, orgID, id)
}

func (r *Clients) Create(ctx context.Context, orgID string, c *models.Client) error {
	c.OrgID = orgID
	c.Email = Optional(c.Email)
	c.Phone = Optional(c.Phone)
	c.Company = Optional(c.Company)
	c.Address = Optional(c.Address)
	c.Notes = Optional(c.Notes)
	return translate(r.db.WithContext(ctx).Create(c).Error)
}

func (r *Clients) Update(ctx context.Context, orgID, id string, patch ClientPatch) (*models.Client, error) {
	return r.repo().update(ctx, orgID, id, patch.fields())
}

// Delete refuses to remove a client that still owns projects or invoices; notes
// pointing at the client are detached.
func (r *Clients) Delete(ctx context.Context, orgID, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := (scoped[models.Client]{db: tx}).get(ctx, orgID, id); err != nil {
			return err
		}
		for _, dep := range []struct {
			model interface{}
			name  string
		}{{&models.Project{}, "projects"}, {&models.Invoice{}, "invoices"}} {
			var n int64
			if err := tx.Model(dep.model).Where("org_id = ? AND client_id = ?", orgID, id).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				return fmt.Errorf("%w: client has %d %s", ErrConflict, n, dep.name)
			}
		}
		if err := tx.Model(&models.Note{}).Where("org_id = ? AND client_id = ?", orgID, id).
			Update("client_id", gorm.Expr("NULL")).Error; err != nil {
			return err
		}
		return (scoped[models.Client]{db: tx}).delete(ctx, orgID, id)
	})
}

func (r *Clients) Count(ctx context.Context, orgID string) (int64, error) {
	return r.repo().count(ctx, orgID, nil)
}
