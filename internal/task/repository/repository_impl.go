package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/clientdesk/internal/billingcycle"
	"github.com/smallbiznis/clientdesk/internal/task/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertTemplate(ctx context.Context, db *gorm.DB, template *domain.Template) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO task_templates (id, client_id, description, category, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		template.ID,
		template.ClientID,
		template.Description,
		template.Category,
		template.Active,
		template.CreatedAt,
	).Error
}

func (r *repo) InsertCompletion(ctx context.Context, db *gorm.DB, completion *domain.Completion) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO task_completions (id, task_template_id, client_id, completion_date, notes, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		completion.ID,
		completion.TaskTemplateID,
		completion.ClientID,
		completion.CompletionDate,
		completion.Notes,
		completion.CreatedAt,
	).Error
}

func (r *repo) MonthlyStats(ctx context.Context, db *gorm.DB, month time.Time, clientID *snowflake.ID) (domain.MonthlyStats, error) {
	start := billingcycle.MonthStart(month)
	end := billingcycle.MonthEnd(month)

	var stats domain.MonthlyStats

	templates := db.WithContext(ctx).Model(&domain.Template{}).Where("active = ?", true)
	if clientID != nil {
		templates = templates.Where("client_id = ?", *clientID)
	}
	if err := templates.Count(&stats.ActiveTemplateCount).Error; err != nil {
		return domain.MonthlyStats{}, err
	}

	completions := db.WithContext(ctx).Model(&domain.Completion{}).
		Where("completion_date >= ? AND completion_date <= ?", start, end)
	if clientID != nil {
		completions = completions.Where("client_id = ?", *clientID)
	}
	if err := completions.Count(&stats.CompletionCount).Error; err != nil {
		return domain.MonthlyStats{}, err
	}

	byCategory := db.WithContext(ctx).
		Table("task_completions AS c").
		Select("t.category AS category, COUNT(1) AS count").
		Joins("JOIN task_templates AS t ON t.id = c.task_template_id").
		Where("c.completion_date >= ? AND c.completion_date <= ?", start, end)
	if clientID != nil {
		byCategory = byCategory.Where("c.client_id = ?", *clientID)
	}
	if err := byCategory.Group("t.category").Order("t.category").Scan(&stats.ByCategory).Error; err != nil {
		return domain.MonthlyStats{}, err
	}
	if stats.ByCategory == nil {
		stats.ByCategory = []domain.CategoryCount{}
	}

	return stats, nil
}

func (r *repo) DeleteByClient(ctx context.Context, db *gorm.DB, clientID snowflake.ID) error {
	if err := db.WithContext(ctx).Exec(`DELETE FROM task_completions WHERE client_id = ?`, clientID).Error; err != nil {
		return err
	}
	return db.WithContext(ctx).Exec(`DELETE FROM task_templates WHERE client_id = ?`, clientID).Error
}
