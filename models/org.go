package models

import (
	"time"

	"gorm.io/gorm"
)

// Org is the tenant boundary. Every client, project, invoice and note belongs to one.
type Org struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Currency  string    `gorm:"size:10;default:'USD'" json:"currency"`
}

func (o *Org) BeforeCreate(tx *gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// TableName overrides the table name
func (Org) TableName() string {
	return "orgs"
}
