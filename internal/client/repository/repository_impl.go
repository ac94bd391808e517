package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clientdesk/internal/billingcycle"
	"github.com/smallbiznis/clientdesk/internal/client/domain"
	"github.com/smallbiznis/clientdesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const clientColumns = `id, name, email, phone, website, contact_person, status, notes, metadata,
	billing_enabled, billing_amount, billing_frequency, billing_day, billing_start_date, billing_active,
	created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *domain.Client) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO clients (`+clientColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		client.ID,
		client.Name,
		client.Email,
		client.Phone,
		client.Website,
		client.ContactPerson,
		client.Status,
		client.Notes,
		client.Metadata,
		client.Billing.Enabled,
		client.Billing.Amount,
		client.Billing.Frequency,
		client.Billing.BillingDay,
		client.Billing.StartDate,
		client.Billing.Active,
		client.CreatedAt,
		client.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Client, error) {
	var client domain.Client
	err := db.WithContext(ctx).Raw(
		`SELECT `+clientColumns+` FROM clients WHERE id = ?`,
		id,
	).Scan(&client).Error
	if err != nil {
		return nil, err
	}
	if client.ID == 0 {
		return nil, nil
	}
	return &client, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListClientFilter, page pagination.Pagination) ([]*domain.Client, error) {
	var clients []*domain.Client
	stmt := db.WithContext(ctx).Model(&domain.Client{})
	if filter.Name != "" {
		stmt = stmt.Where("LOWER(name) LIKE LOWER(?)", "%"+filter.Name+"%")
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	stmt, err := pagination.Apply(stmt, page)
	if err != nil {
		return nil, err
	}
	if err := stmt.Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *repo) ListAll(ctx context.Context, db *gorm.DB) ([]domain.Client, error) {
	var clients []domain.Client
	err := db.WithContext(ctx).
		Model(&domain.Client{}).
		Order("name asc, id asc").
		Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *repo) ListBillable(ctx context.Context, db *gorm.DB) ([]domain.Client, error) {
	var clients []domain.Client
	err := db.WithContext(ctx).
		Model(&domain.Client{}).
		Where("billing_enabled = ? AND billing_active = ?", true, true).
		Order("id asc").
		Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *repo) UpdateProfile(ctx context.Context, db *gorm.DB, client *domain.Client) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE clients
		 SET name = ?, email = ?, phone = ?, website = ?, contact_person = ?, status = ?, notes = ?, updated_at = ?
		 WHERE id = ?`,
		client.Name,
		client.Email,
		client.Phone,
		client.Website,
		client.ContactPerson,
		client.Status,
		client.Notes,
		client.UpdatedAt,
		client.ID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) UpdateBilling(ctx context.Context, db *gorm.DB, id snowflake.ID, cfg billingcycle.Configuration, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE clients
		 SET billing_enabled = ?, billing_amount = ?, billing_frequency = ?, billing_day = ?,
		     billing_start_date = ?, billing_active = ?, updated_at = ?
		 WHERE id = ?`,
		cfg.Enabled,
		cfg.Amount,
		cfg.Frequency,
		cfg.BillingDay,
		cfg.StartDate,
		cfg.Active,
		now,
		id,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM clients WHERE id = ?`, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
