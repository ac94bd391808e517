package billingcycle

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultHorizonMonths is how far past the as-of date periods are produced
// when no horizon is given.
const DefaultHorizonMonths = 3

// Period is one billing occurrence of a client.
type Period struct {
	Key     string          `json:"key"`
	DueDate time.Time       `json:"due_date"`
	Amount  decimal.Decimal `json:"amount"`
}

// Horizon returns asOf moved forward by months, clamped to month end.
func Horizon(asOf time.Time, months int) time.Time {
	if months <= 0 {
		months = DefaultHorizonMonths
	}
	return AddClampedMonths(DateOf(asOf), months)
}

// PeriodKey identifies the period a due date belongs to: "2024-03" for
// monthly, "2024-Q1" for quarterly and "2024" for yearly schedules.
func PeriodKey(frequency Frequency, due time.Time) string {
	switch frequency {
	case FrequencyQuarterly:
		return fmt.Sprintf("%04d-Q%d", due.Year(), (int(due.Month())-1)/3+1)
	case FrequencyYearly:
		return fmt.Sprintf("%04d", due.Year())
	default:
		return fmt.Sprintf("%04d-%02d", due.Year(), int(due.Month()))
	}
}

// Calculate lists every period of cfg whose due date falls on or after the
// start date and on or before the horizon. A zero horizon means
// DefaultHorizonMonths past asOf. Periods are returned in due date order
// and the result depends only on the inputs.
func Calculate(cfg Configuration, asOf, horizon time.Time) ([]Period, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Billable() {
		return []Period{}, nil
	}

	if horizon.IsZero() {
		horizon = Horizon(asOf, DefaultHorizonMonths)
	}
	horizon = DateOf(horizon)
	start := DateOf(cfg.StartDate)
	step := cfg.Frequency.StepMonths()
	anchor := MonthStart(start)

	periods := []Period{}
	for i := 0; ; i++ {
		month := anchor.AddDate(0, i*step, 0)
		due := ClampDay(month.Year(), month.Month(), cfg.BillingDay)
		if due.After(horizon) {
			break
		}
		if due.Before(start) {
			continue
		}
		periods = append(periods, Period{
			Key:     PeriodKey(cfg.Frequency, due),
			DueDate: due,
			Amount:  cfg.Amount,
		})
	}
	return periods, nil
}
