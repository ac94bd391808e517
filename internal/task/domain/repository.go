package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertTemplate(ctx context.Context, db *gorm.DB, template *Template) error
	InsertCompletion(ctx context.Context, db *gorm.DB, completion *Completion) error
	// MonthlyStats counts active templates and the completions dated within
	// the month of `month`. A nil clientID covers every client.
	MonthlyStats(ctx context.Context, db *gorm.DB, month time.Time, clientID *snowflake.ID) (MonthlyStats, error)
	DeleteByClient(ctx context.Context, db *gorm.DB, clientID snowflake.ID) error
}
