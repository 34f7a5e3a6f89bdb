package store

import (
	"context"
	"strings"

	"github.com/yourusername/clientbook/models"
	"gorm.io/gorm"
)

type Notes struct {
	db *gorm.DB
}

type NoteFilter struct {
	ClientID  string `form:"client_id"`
	ProjectID string `form:"project_id"`
	InvoiceID string `form:"invoice_id"`
	Search    string `form:"search"`
	Page
}

// NotePatch carries a partial update. An empty reference id detaches the note.
type NotePatch struct {
	Title     *string `json:"title" binding:"omitempty,min=1,max=255"`
	Content   *string `json:"content" binding:"omitempty,min=1"`
	ClientID  *string `json:"client_id"`
	ProjectID *string `json:"project_id"`
	InvoiceID *string `json:"invoice_id"`
}

func (r *Notes) repo() scoped[models.Note] {
	return scoped[models.Note]{db: r.db}
}

func (r *Notes) List(ctx context.Context, orgID string, f NoteFilter) ([]models.Note, error) {
	q := r.db.WithContext(ctx).Where("org_id = ?", orgID)
	if f.ClientID != "" {
		q = q.Where("client_id = ?", f.ClientID)
	}
	if f.ProjectID != "" {
		q = q.Where("project_id = ?", f.ProjectID)
	}
	if f.InvoiceID != "" {
		q = q.Where("invoice_id = ?", f.InvoiceID)
	}
	q = search(q, f.Search, "title", "content")
	var out []models.Note
	err := f.Page.apply(q).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (r *Notes) Get(ctx context.Context, orgID, id string) (*models.Note, error) {
	return r.repo().get(ctx, orgID, id)
}

func (r *Notes) checkRefs(ctx context.Context, orgID string, client, project, invoice *string) error {
	refs := []struct {
		id    *string
		model interface{}
		name  string
	}{
		{client, &models.Client{}, "client"},
		{project, &models.Project{}, "project"},
		{invoice, &models.Invoice{}, "invoice"},
	}
	for _, ref := range refs {
		if ref.id == nil || *ref.id == "" {
			continue
		}
		if err := mustExist(ctx, r.db, ref.model, ref.name, orgID, *ref.id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Notes) Create(ctx context.Context, orgID string, n *models.Note) error {
	n.OrgID = orgID
	n.ClientID = Optional(n.ClientID)
	n.ProjectID = Optional(n.ProjectID)
	n.InvoiceID = Optional(n.InvoiceID)
	if err := r.checkRefs(ctx, orgID, n.ClientID, n.ProjectID, n.InvoiceID); err != nil {
		return err
	}
	return translate(r.db.WithContext(ctx).Create(n).Error)
}

func (r *Notes) Update(ctx context.Context, orgID, id string, patch NotePatch) (*models.Note, error) {
	if err := r.checkRefs(ctx, orgID, Optional(patch.ClientID), Optional(patch.ProjectID), Optional(patch.InvoiceID)); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	if patch.Title != nil {
		fields["title"] = strings.TrimSpace(*patch.Title)
	}
	if patch.Content != nil {
		fields["content"] = *patch.Content
	}
	for col, v := range map[string]*string{
		"client_id": patch.ClientID, "project_id": patch.ProjectID, "invoice_id": patch.InvoiceID,
	} {
		if v != nil {
			fields[col] = nullable(*v)
		}
	}
	return r.repo().update(ctx, orgID, id, fields)
}

func (r *Notes) Delete(ctx context.Context, orgID, id string) error {
	return r.repo().delete(ctx, orgID, id)
}
