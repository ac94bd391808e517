package domain

import (
	"time"

	"github.com/shopspring/decimal"
	taskdomain "github.com/smallbiznis/clientdesk/internal/task/domain"
)

// MonthlyRollup partitions the obligations due within a month by status.
type MonthlyRollup struct {
	Month         string          `json:"month"`
	Received      decimal.Decimal `json:"received"`
	Pending       decimal.Decimal `json:"pending"`
	Overdue       decimal.Decimal `json:"overdue"`
	ExpectedTotal decimal.Decimal `json:"expected_total"`
	Count         int             `json:"count"`
}

// Growth compares the money received in a month with the month before.
type Growth struct {
	Month    string          `json:"month"`
	Current  decimal.Decimal `json:"current"`
	Previous decimal.Decimal `json:"previous"`
	Percent  int64           `json:"percent"`
}

type UpcomingObligation struct {
	ObligationID string          `json:"obligation_id"`
	ClientID     string          `json:"client_id"`
	ClientName   string          `json:"client_name"`
	Amount       decimal.Decimal `json:"amount"`
	DueDate      time.Time       `json:"due_date"`
	DaysUntilDue int             `json:"days_until_due"`
}

type TopClient struct {
	ClientID string          `json:"client_id"`
	Name     string          `json:"name"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type CompletionRate struct {
	Month           string                     `json:"month"`
	ActiveTemplates int64                      `json:"active_templates"`
	Completions     int64                      `json:"completions"`
	DaysInMonth     int                        `json:"days_in_month"`
	Percent         int64                      `json:"percent"`
	ByCategory      []taskdomain.CategoryCount `json:"by_category"`
}

type TrendPoint struct {
	Month    string          `json:"month"`
	Received decimal.Decimal `json:"received"`
}

type ClientCounts struct {
	Active    int64 `json:"active"`
	Recurring int64 `json:"recurring"`
	// AverageRevenue is the month's received amount per active client.
	AverageRevenue decimal.Decimal `json:"average_revenue"`
}

// Overview bundles every report for one month.
type Overview struct {
	Month      string               `json:"month"`
	AsOf       time.Time            `json:"as_of"`
	Payments   MonthlyRollup        `json:"payments"`
	Growth     Growth               `json:"growth"`
	Upcoming   []UpcomingObligation `json:"upcoming"`
	TopClients []TopClient          `json:"top_clients"`
	Tasks      CompletionRate       `json:"tasks"`
	Trend      []TrendPoint         `json:"trend"`
	Clients    ClientCounts         `json:"clients"`
}
