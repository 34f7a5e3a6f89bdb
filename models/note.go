package models

import (
	"time"

	"gorm.io/gorm"
)

// Note may reference a client, a project and an invoice, each independently.
type Note struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	OrgID     string    `gorm:"type:uuid;index;not null" json:"org_id"`
	ClientID  *string   `gorm:"type:uuid;index" json:"client_id"`
	ProjectID *string   `gorm:"type:uuid;index" json:"project_id"`
	InvoiceID *string   `gorm:"type:uuid;index" json:"invoice_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedBy string    `gorm:"type:uuid;not null" json:"created_by"`
}

func (n *Note) BeforeCreate(tx *gorm.DB) error {
	assignID(&n.ID)
	return nil
}

// TableName overrides the table name
func (Note) TableName() string {
	return "notes"
}
