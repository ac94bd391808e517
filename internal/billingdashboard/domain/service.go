package domain

import (
	"context"
	"errors"
	"time"
)

// ReportRequest selects the month and optional client a report covers.
type ReportRequest struct {
	// Month is formatted as 2006-01. Empty means the current month.
	Month    string
	ClientID string
	// AsOf overrides the clock for "today". Nil means now.
	AsOf *time.Time
}

// Service produces read-only reports. Each call reconciles overdue
// statuses before reading.
type Service interface {
	Overview(ctx context.Context, req ReportRequest) (Overview, error)
	Monthly(ctx context.Context, req ReportRequest) (MonthlyRollup, error)
	Growth(ctx context.Context, req ReportRequest) (Growth, error)
	Upcoming(ctx context.Context, req ReportRequest) ([]UpcomingObligation, error)
	TopClients(ctx context.Context, req ReportRequest) ([]TopClient, error)
	Completion(ctx context.Context, req ReportRequest) (CompletionRate, error)
	Trend(ctx context.Context, req ReportRequest) ([]TrendPoint, error)
}

var (
	ErrInvalidMonth  = errors.New("invalid_month")
	ErrInvalidClient = errors.New("invalid_client")
)
