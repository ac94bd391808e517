package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Category string

const (
	CategorySEO         Category = "seo"
	CategoryContent     Category = "content"
	CategorySocialMedia Category = "social_media"
	CategoryTechnical   Category = "technical"
	CategoryAdmin       Category = "admin"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategorySEO,
	CategoryContent,
	CategorySocialMedia,
	CategoryTechnical,
	CategoryAdmin,
}

// Template is a recurring daily checklist item for a client.
type Template struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	ClientID    snowflake.ID `gorm:"not null;index" json:"client_id"`
	Description string       `gorm:"type:text;not null" json:"description"`
	Category    Category     `gorm:"type:varchar(32);not null" json:"category"`
	Active      bool         `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Template) TableName() string { return "task_templates" }

// Completion records that a template was done on a given day.
type Completion struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	TaskTemplateID snowflake.ID `gorm:"not null;index" json:"task_template_id"`
	ClientID       snowflake.ID `gorm:"not null;index" json:"client_id"`
	CompletionDate time.Time    `gorm:"type:date;not null;index" json:"completion_date"`
	Notes          string       `gorm:"type:text;not null;default:''" json:"notes,omitempty"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Completion) TableName() string { return "task_completions" }

type CategoryCount struct {
	Category Category `json:"category"`
	Count    int64    `json:"count"`
}

// MonthlyStats summarizes task activity for one month.
type MonthlyStats struct {
	ActiveTemplateCount int64           `json:"active_template_count"`
	CompletionCount     int64           `json:"completion_count"`
	ByCategory          []CategoryCount `json:"by_category"`
}
