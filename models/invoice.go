package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceStatus string

const (
	InvoiceDraft     InvoiceStatus = "draft"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoicePaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

// Invoice holds derived money fields; Subtotal, TaxAmount and Total are only ever
// written from the line items by the invoicing service.
type Invoice struct {
	ID            string          `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	OrgID         string          `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_org_number" json:"org_id"`
	ClientID      string          `gorm:"type:uuid;index;not null" json:"client_id"`
	Client        *Client         `gorm:"foreignKey:ClientID" json:"client,omitempty"`
	ProjectID     *string         `gorm:"type:uuid;index" json:"project_id"`
	Project       *Project        `gorm:"foreignKey:ProjectID" json:"project,omitempty"`
	InvoiceNumber string          `gorm:"size:50;not null;uniqueIndex:idx_invoices_org_number" json:"invoice_number"`
	IssueDate     time.Time       `gorm:"not null" json:"issue_date"`
	DueDate       time.Time       `gorm:"not null;index" json:"due_date"`
	Status        InvoiceStatus   `gorm:"size:20;default:'draft';index" json:"status"`
	Subtotal      decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"subtotal"`
	TaxRate       decimal.Decimal `gorm:"type:numeric(5,2);not null;default:0" json:"tax_rate"`
	TaxAmount     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"tax_amount"`
	Total         decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total"`
	Notes         *string         `gorm:"type:text" json:"notes"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// TableName overrides the table name
func (Invoice) TableName() string {
	return "invoices"
}
