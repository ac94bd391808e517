// Package rollup computes reports over an in-memory snapshot of obligations
// and clients. Nothing here touches the store.
package rollup

import (
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/clientdesk/internal/billingcycle"
	"github.com/smallbiznis/clientdesk/internal/billingdashboard/domain"
	clientdomain "github.com/smallbiznis/clientdesk/internal/client/domain"
	ledgerdomain "github.com/smallbiznis/clientdesk/internal/ledger/domain"
	taskdomain "github.com/smallbiznis/clientdesk/internal/task/domain"
)

const (
	DefaultUpcomingDays = 7
	DefaultTopClients   = 5
	DefaultTrendMonths  = 6

	monthLayout = "2006-01"
)

var hundred = decimal.NewFromInt(100)

// MonthKey formats the month containing t.
func MonthKey(t time.Time) string {
	return billingcycle.MonthStart(t).Format(monthLayout)
}

// ParseMonth parses a 2006-01 month into its first day.
func ParseMonth(value string) (time.Time, error) {
	t, err := time.ParseInLocation(monthLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, domain.ErrInvalidMonth
	}
	return t, nil
}

// RoundHalfUp rounds to the nearest integer with halves going towards
// positive infinity, so -19.5 becomes -19 and 19.5 becomes 20.
func RoundHalfUp(d decimal.Decimal) int64 {
	return d.Add(decimal.NewFromFloat(0.5)).Floor().IntPart()
}

func inMonth(month time.Time) func(ledgerdomain.Obligation, int) bool {
	start := billingcycle.MonthStart(month)
	end := billingcycle.MonthEnd(month)
	return func(o ledgerdomain.Obligation, _ int) bool {
		due := billingcycle.DateOf(o.DueDate)
		return !due.Before(start) && !due.After(end)
	}
}

func sum(items []ledgerdomain.Obligation) decimal.Decimal {
	return lo.Reduce(items, func(acc decimal.Decimal, o ledgerdomain.Obligation, _ int) decimal.Decimal {
		return acc.Add(o.Amount)
	}, decimal.Zero)
}

func received(items []ledgerdomain.Obligation, month time.Time) decimal.Decimal {
	due := lo.Filter(items, inMonth(month))
	return sum(lo.Filter(due, func(o ledgerdomain.Obligation, _ int) bool {
		return o.Status == ledgerdomain.StatusPaid
	}))
}

// Monthly sums the obligations due in month per status. ExpectedTotal is
// received plus pending.
func Monthly(items []ledgerdomain.Obligation, month time.Time) domain.MonthlyRollup {
	due := lo.Filter(items, inMonth(month))
	byStatus := lo.GroupBy(due, func(o ledgerdomain.Obligation) ledgerdomain.Status {
		return o.Status
	})

	out := domain.MonthlyRollup{
		Month:    MonthKey(month),
		Received: sum(byStatus[ledgerdomain.StatusPaid]),
		Pending:  sum(byStatus[ledgerdomain.StatusPending]),
		Overdue:  sum(byStatus[ledgerdomain.StatusOverdue]),
		Count:    len(due),
	}
	out.ExpectedTotal = out.Received.Add(out.Pending)
	return out
}

// GrowthPercent returns round((current - previous) / previous * 100), or 0
// when nothing was received the month before.
func GrowthPercent(current, previous decimal.Decimal) int64 {
	if !previous.IsPositive() {
		return 0
	}
	return RoundHalfUp(current.Sub(previous).Div(previous).Mul(hundred))
}

func MonthlyGrowth(items []ledgerdomain.Obligation, month time.Time) domain.Growth {
	current := received(items, month)
	previous := received(items, billingcycle.MonthStart(month).AddDate(0, -1, 0))
	return domain.Growth{
		Month:    MonthKey(month),
		Current:  current,
		Previous: previous,
		Percent:  GrowthPercent(current, previous),
	}
}

// Upcoming lists pending obligations due between today and today+days,
// both inclusive, earliest first.
func Upcoming(items []ledgerdomain.Obligation, clients []clientdomain.Client, today time.Time, days int) []domain.UpcomingObligation {
	if days <= 0 {
		days = DefaultUpcomingDays
	}
	today = billingcycle.DateOf(today)
	until := today.AddDate(0, 0, days)
	names := clientNames(clients)

	due := lo.Filter(items, func(o ledgerdomain.Obligation, _ int) bool {
		d := billingcycle.DateOf(o.DueDate)
		return o.Status == ledgerdomain.StatusPending && !d.Before(today) && !d.After(until)
	})
	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].DueDate.Equal(due[j].DueDate) {
			return due[i].DueDate.Before(due[j].DueDate)
		}
		return due[i].ID < due[j].ID
	})

	return lo.Map(due, func(o ledgerdomain.Obligation, _ int) domain.UpcomingObligation {
		d := billingcycle.DateOf(o.DueDate)
		return domain.UpcomingObligation{
			ObligationID: o.ID.String(),
			ClientID:     o.ClientID.String(),
			ClientName:   names[o.ClientID],
			Amount:       o.Amount,
			DueDate:      d,
			DaysUntilDue: int(d.Sub(today).Hours() / 24),
		}
	})
}

// TopClients ranks clients by the total of their paid obligations. Ties are
// broken by name and then id so the order is stable.
func TopClients(items []ledgerdomain.Obligation, clients []clientdomain.Client, limit int) []domain.TopClient {
	if limit <= 0 {
		limit = DefaultTopClients
	}
	paid := lo.Filter(items, func(o ledgerdomain.Obligation, _ int) bool {
		return o.Status == ledgerdomain.StatusPaid
	})
	revenue := lo.MapValues(lo.GroupBy(paid, func(o ledgerdomain.Obligation) snowflake.ID {
		return o.ClientID
	}), func(group []ledgerdomain.Obligation, _ snowflake.ID) decimal.Decimal {
		return sum(group)
	})

	type rankedClient struct {
		id snowflake.ID
		domain.TopClient
	}
	ranked := lo.Map(clients, func(c clientdomain.Client, _ int) rankedClient {
		total, ok := revenue[c.ID]
		if !ok {
			total = decimal.Zero
		}
		return rankedClient{id: c.ID, TopClient: domain.TopClient{ClientID: c.ID.String(), Name: c.Name, Revenue: total}}
	})
	sort.SliceStable(ranked, func(i, j int) bool {
		if cmp := ranked[i].Revenue.Cmp(ranked[j].Revenue); cmp != 0 {
			return cmp > 0
		}
		if ranked[i].Name != ranked[j].Name {
			return ranked[i].Name < ranked[j].Name
		}
		return ranked[i].id < ranked[j].id
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return lo.Map(ranked, func(r rankedClient, _ int) domain.TopClient {
		return r.TopClient
	})
}

// Completion turns task stats into a completion rate:
// completions / (activeTemplates * daysInMonth), as a rounded percentage.
// Categories without completions are left out.
func Completion(stats taskdomain.MonthlyStats, month time.Time) domain.CompletionRate {
	start := billingcycle.MonthStart(month)
	days := billingcycle.DaysInMonth(start.Year(), start.Month())

	out := domain.CompletionRate{
		Month:           MonthKey(month),
		ActiveTemplates: stats.ActiveTemplateCount,
		Completions:     stats.CompletionCount,
		DaysInMonth:     days,
		ByCategory: lo.Filter(stats.ByCategory, func(c taskdomain.CategoryCount, _ int) bool {
			return c.Count > 0
		}),
	}
	possible := stats.ActiveTemplateCount * int64(days)
	if possible > 0 {
		out.Percent = RoundHalfUp(decimal.NewFromInt(stats.CompletionCount).Div(decimal.NewFromInt(possible)).Mul(hundred))
	}
	return out
}

// Trend returns the received amount for each of the months months ending
// with month, oldest first.
func Trend(items []ledgerdomain.Obligation, month time.Time, months int) []domain.TrendPoint {
	if months <= 0 {
		months = DefaultTrendMonths
	}
	last := billingcycle.MonthStart(month)
	points := make([]domain.TrendPoint, 0, months)
	for i := months - 1; i >= 0; i-- {
		m := last.AddDate(0, -i, 0)
		points = append(points, domain.TrendPoint{
			Month:    MonthKey(m),
			Received: received(items, m),
		})
	}
	return points
}

// Clients counts active clients and clients with billing enabled, and
// spreads the month's received amount over the active ones.
func Clients(clients []clientdomain.Client, monthReceived decimal.Decimal) domain.ClientCounts {
	out := domain.ClientCounts{
		Active: int64(lo.CountBy(clients, func(c clientdomain.Client) bool {
			return c.Status == clientdomain.StatusActive
		})),
		Recurring: int64(lo.CountBy(clients, func(c clientdomain.Client) bool {
			return c.Billing.Enabled
		})),
		AverageRevenue: decimal.Zero,
	}
	if out.Active > 0 {
		out.AverageRevenue = decimal.NewFromInt(RoundHalfUp(monthReceived.Div(decimal.NewFromInt(out.Active))))
	}
	return out
}

func clientNames(clients []clientdomain.Client) map[snowflake.ID]string {
	return lo.SliceToMap(clients, func(c clientdomain.Client) (snowflake.ID, string) {
		return c.ID, c.Name
	})
}
