package store

import (
	"context"
	"strings"

	"github.com/yourusername/clientbook/models"
	"gorm.io/gorm"
)

type Profiles struct {
	db *gorm.DB
}

func (r *Profiles) Get(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *Profiles) GetByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *Profiles) Create(ctx context.Context, p *models.Profile) error {
	p.Email = NormalizeEmail(p.Email)
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Profile{}).Where("email = ?", p.Email).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return ErrConflict
	}
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

func (r *Profiles) ListByOrg(ctx context.Context, orgID string) ([]models.Profile, error) {
	var out []models.Profile
	err := r.db.WithContext(ctx).Where("org_id = ?", orgID).Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *Profiles) Update(ctx context.Context, id string, fields map[string]interface{}) (*models.Profile, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", id).Updates(fields).Error; err != nil {
		return nil, translate(err)
	}
	return r.Get(ctx, id)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
