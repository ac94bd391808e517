package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clientdesk/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const obligationColumns = `id, client_id, amount, due_date, status, payment_method, notes,
	auto_generated, cycle_period_key, paid_at, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, obligation *domain.Obligation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_obligations (`+obligationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		obligation.ID,
		obligation.ClientID,
		obligation.Amount,
		obligation.DueDate,
		obligation.Status,
		obligation.PaymentMethod,
		obligation.Notes,
		obligation.AutoGenerated,
		obligation.CyclePeriodKey,
		obligation.PaidAt,
		obligation.CreatedAt,
		obligation.UpdatedAt,
	).Error
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, obligation *domain.Obligation) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "client_id"}, {Name: "cycle_period_key"}},
			DoNothing: true,
		}).
		Create(obligation)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ExistsForPeriod(ctx context.Context, db *gorm.DB, clientID snowflake.ID, periodKey string) (bool, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM payment_obligations WHERE client_id = ? AND cycle_period_key = ?`,
		clientID,
		periodKey,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Obligation, error) {
	var obligation domain.Obligation
	err := db.WithContext(ctx).Raw(
		`SELECT `+obligationColumns+` FROM payment_obligations WHERE id = ?`,
		id,
	).Scan(&obligation).Error
	if err != nil {
		return nil, err
	}
	if obligation.ID == 0 {
		return nil, nil
	}
	return &obligation, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter) ([]domain.Obligation, error) {
	var obligations []domain.Obligation
	stmt := db.WithContext(ctx).Model(&domain.Obligation{})
	if filter.ClientID != nil {
		stmt = stmt.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Status != nil {
		stmt = stmt.Where("status = ?", *filter.Status)
	}
	if filter.DueFrom != nil {
		stmt = stmt.Where("due_date >= ?", *filter.DueFrom)
	}
	if filter.DueTo != nil {
		stmt = stmt.Where("due_date <= ?", *filter.DueTo)
	}
	if filter.AutoGenerated != nil {
		stmt = stmt.Where("auto_generated = ?", *filter.AutoGenerated)
	}
	err := stmt.Order("due_date desc, id desc").Find(&obligations).Error
	if err != nil {
		return nil, err
	}
	return obligations, nil
}

func (r *repo) UpdateFields(ctx context.Context, db *gorm.DB, id snowflake.ID, expected domain.Status, fields map[string]any) (bool, error) {
	result := db.WithContext(ctx).
		Model(&domain.Obligation{}).
		Where("id = ? AND status = ?", id, expected).
		Updates(fields)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM payment_obligations WHERE id = ?`, id)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) DeleteByClient(ctx context.Context, db *gorm.DB, clientID snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM payment_obligations WHERE client_id = ?`, clientID)
	return result.RowsAffected, result.Error
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, asOf time.Time, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE payment_obligations
		 SET status = ?, updated_at = ?
		 WHERE status = ? AND due_date < ?`,
		domain.StatusOverdue,
		now,
		domain.StatusPending,
		asOf,
	)
	return result.RowsAffected, result.Error
}
