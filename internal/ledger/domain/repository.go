package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListFilter struct {
	ClientID      *snowflake.ID
	Status        *Status
	DueFrom       *time.Time
	DueTo         *time.Time
	AutoGenerated *bool
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, obligation *Obligation) error
	// InsertIfAbsent inserts unless a row with the same client and cycle
	// period key exists. It reports whether a row was written.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, obligation *Obligation) (bool, error)
	ExistsForPeriod(ctx context.Context, db *gorm.DB, clientID snowflake.ID, periodKey string) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Obligation, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Obligation, error)
	// UpdateFields applies fields only while the row still has the expected
	// status. It reports whether the row was updated.
	UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, expected Status, fields map[string]any) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
	DeleteByClient(ctx context.Context, db *gorm.DB, clientID snowflake.ID) (int64, error)
	// MarkOverdue moves every pending obligation due strictly before asOf to
	// overdue and returns the number of rows changed.
	MarkOverdue(ctx context.Context, db *gorm.DB, asOf time.Time, now time.Time) (int64, error)
}
