package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clientdesk/internal/billingcycle"
	"github.com/smallbiznis/clientdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, client *Client) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Client, error)
	List(ctx context.Context, db *gorm.DB, filter ListClientFilter, page pagination.Pagination) ([]*Client, error)
	// ListAll returns every client ordered by name.
	ListAll(ctx context.Context, db *gorm.DB) ([]Client, error)
	// ListBillable returns clients whose billing is enabled and active.
	ListBillable(ctx context.Context, db *gorm.DB) ([]Client, error)
	UpdateProfile(ctx context.Context, db *gorm.DB, client *Client) (bool, error)
	UpdateBilling(ctx context.Context, db *gorm.DB, id snowflake.ID, cfg billingcycle.Configuration, now time.Time) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}
