package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

func ParseStatus(value string) (Status, error) {
	switch s := Status(value); s {
	case StatusPending, StatusPaid, StatusOverdue:
		return s, nil
	default:
		return "", ErrInvalidStatus
	}
}

// CanTransition reports whether an obligation may move from one status to
// another. Paid is terminal and nothing returns to pending.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusPending:
		return to == StatusOverdue || to == StatusPaid
	case StatusOverdue:
		return to == StatusPaid
	default:
		return false
	}
}

// Obligation is one amount a client owes on a due date. Rows produced by the
// generator carry the cycle period key; manual rows leave it nil.
type Obligation struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	ClientID       snowflake.ID    `gorm:"not null;index;uniqueIndex:ux_payment_obligations_client_period,priority:1" json:"client_id"`
	Amount         decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	DueDate        time.Time       `gorm:"type:date;not null;index" json:"due_date"`
	Status         Status          `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	PaymentMethod  string          `gorm:"type:text;not null;default:''" json:"payment_method,omitempty"`
	Notes          string          `gorm:"type:text;not null;default:''" json:"notes,omitempty"`
	AutoGenerated  bool            `gorm:"not null;default:false" json:"auto_generated"`
	CyclePeriodKey *string         `gorm:"type:varchar(16);uniqueIndex:ux_payment_obligations_client_period,priority:2" json:"cycle_period_key,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	CreatedAt      time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Obligation) TableName() string { return "payment_obligations" }

// IsOutstanding reports whether money is still expected for the obligation.
func (o Obligation) IsOutstanding() bool {
	return o.Status == StatusPending || o.Status == StatusOverdue
}
