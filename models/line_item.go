package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceLineItem struct {
	ID          string          `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	InvoiceID   string          `gorm:"type:uuid;index;not null" json:"invoice_id"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	LineTotal   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"line_total"` // always quantity * unit_price
}

func (l *InvoiceLineItem) BeforeCreate(tx *gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// TableName overrides the table name
func (InvoiceLineItem) TableName() string {
	return "invoice_line_items"
}
