package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProjectStatus string

const (
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCancelled ProjectStatus = "cancelled"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectActive, ProjectCompleted, ProjectOnHold, ProjectCancelled:
		return true
	}
	return false
}

type Project struct {
	ID          string           `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	OrgID       string           `gorm:"type:uuid;index;not null" json:"org_id"`
	ClientID    string           `gorm:"type:uuid;index;not null" json:"client_id"`
	Name        string           `gorm:"size:255;not null" json:"name"`
	Description *string          `gorm:"type:text" json:"description"`
	Status      ProjectStatus    `gorm:"size:20;default:'active'" json:"status"`
	StartDate   *time.Time       `json:"start_date"`
	EndDate     *time.Time       `json:"end_date"`
	Budget      *decimal.Decimal `gorm:"type:numeric(12,2)" json:"budget"`
}

func (p *Project) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// TableName overrides the table name
func (Project) TableName() string {
	return "projects"
}
