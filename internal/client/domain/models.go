package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clientdesk/internal/billingcycle"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type Client struct {
	ID            snowflake.ID               `gorm:"primaryKey" json:"id"`
	Name          string                     `gorm:"not null" json:"name"`
	Email         string                     `gorm:"not null;default:''" json:"email,omitempty"`
	Phone         string                     `gorm:"not null;default:''" json:"phone,omitempty"`
	Website       string                     `gorm:"not null;default:''" json:"website,omitempty"`
	ContactPerson string                     `gorm:"not null;default:''" json:"contact_person,omitempty"`
	Status        Status                     `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	Notes         string                     `gorm:"type:text;not null;default:''" json:"notes,omitempty"`
	Metadata      datatypes.JSONMap          `json:"metadata,omitempty"`
	Billing       billingcycle.Configuration `gorm:"embedded;embeddedPrefix:billing_" json:"billing"`
	CreatedAt     time.Time                  `gorm:"not null" json:"created_at"`
	UpdatedAt     time.Time                  `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Client) TableName() string { return "clients" }
