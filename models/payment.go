package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	MethodEFT     = "eft"
	MethodCash    = "cash"
	MethodCard    = "card"
	MethodStellar = "stellar"
	MethodOther   = "other"
)

func ValidPaymentMethod(m string) bool {
	switch m {
	case MethodEFT, MethodCash, MethodCard, MethodStellar, MethodOther:
		return true
	}
	return false
}

type Payment struct {
	ID        string          `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	OrgID     string          `gorm:"type:uuid;index;not null" json:"org_id"`
	InvoiceID string          `gorm:"type:uuid;index;not null" json:"invoice_id"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Method    string          `gorm:"size:20;not null;default:'eft'" json:"method"` // eft, cash, card, stellar, other
	Reference *string         `gorm:"size:255" json:"reference"`
	PaidAt    time.Time       `gorm:"not null" json:"paid_at"`
	CreatedBy *string         `gorm:"type:uuid" json:"created_by"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// TableName overrides the table name
func (Payment) TableName() string {
	return "payments"
}
