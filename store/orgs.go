package store

import (
	"context"
	"strings"

	"github.com/yourusername/clientbook/models"
	"gorm.io/gorm"
)

type Orgs struct {
	db *gorm.DB
}

func (r *Orgs) Get(ctx context.Context, id string) (*models.Org, error) {
	var org models.Org
	if err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &org, nil
}

func (r *Orgs) Create(ctx context.Context, org *models.Org) error {
	return translate(r.db.WithContext(ctx).Create(org).Error)
}

type OrgPatch struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=255"`
	Currency *string `json:"currency" binding:"omitempty,len=3"`
}

func (r *Orgs) Update(ctx context.Context, id string, patch OrgPatch) (*models.Org, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if patch.Name != nil {
		fields["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Currency != nil {
		fields["currency"] = strings.ToUpper(*patch.Currency)
	}
	if len(fields) > 0 {
		if err := r.db.WithContext(ctx).Model(&models.Org{}).Where("id = ?", id).Updates(fields).Error; err != nil {
			return nil, translate(err)
		}
	}
	return r.Get(ctx, id)
}

// Delete is only used to undo a partially provisioned organization.
func (r *Orgs) Delete(ctx context.Context, id string) error {
	return translate(r.db.WithContext(ctx).Delete(&models.Org{}, "id = ?", id).Error)
}
