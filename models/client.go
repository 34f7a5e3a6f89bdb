package models

import (
	"time"

	"gorm.io/gorm"
)

type Client struct {
	ID        string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	OrgID     string    `gorm:"type:uuid;index;not null" json:"org_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     *string   `gorm:"size:255" json:"email"`
	Phone     *string   `gorm:"size:50" json:"phone"`
	Company   *string   `gorm:"size:255" json:"company"`
	Address   *string   `gorm:"type:text" json:"address"`
	Notes     *string   `gorm:"type:text" json:"notes"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// TableName overrides the table name
func (Client) TableName() string {
	return "clients"
}
