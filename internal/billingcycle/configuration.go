package billingcycle

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidConfiguration = errors.New("invalid_configuration")

type Frequency string

const (
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// ParseFrequency normalizes user input into a Frequency.
func ParseFrequency(value string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(value)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: unknown frequency %q", ErrInvalidConfiguration, value)
	}
	return f, nil
}

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	default:
		return false
	}
}

// StepMonths is the distance between consecutive due dates.
func (f Frequency) StepMonths() int {
	switch f {
	case FrequencyQuarterly:
		return 3
	case FrequencyYearly:
		return 12
	default:
		return 1
	}
}

// Configuration is a client's recurring billing setup. It is stored inline on
// the client row with a billing_ column prefix.
type Configuration struct {
	Enabled    bool            `gorm:"column:enabled;not null;default:false" json:"enabled"`
	Amount     decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null;default:0" json:"amount"`
	Frequency  Frequency       `gorm:"column:frequency;type:varchar(16);not null;default:'monthly'" json:"frequency"`
	BillingDay int             `gorm:"column:day;not null;default:1" json:"billing_day"`
	StartDate  time.Time       `gorm:"column:start_date;type:date" json:"start_date"`
	Active     bool            `gorm:"column:active;not null;default:true" json:"active"`
}

// NewConfiguration builds a validated configuration. A disabled
// configuration is accepted as-is since it never produces periods.
func NewConfiguration(enabled bool, amount decimal.Decimal, frequency Frequency, billingDay int, startDate time.Time, active bool) (Configuration, error) {
	cfg := Configuration{
		Enabled:    enabled,
		Amount:     amount,
		Frequency:  frequency,
		BillingDay: billingDay,
		StartDate:  startDate,
		Active:     active,
	}
	if !startDate.IsZero() {
		cfg.StartDate = DateOf(startDate)
	}
	if err := cfg.Validate(); err != nil {
		return Configuration{}, err
	}
	return cfg, nil
}

func (c Configuration) Validate() error {
	if !c.Enabled {
		return nil
	}
	if !c.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidConfiguration)
	}
	if c.BillingDay < 1 || c.BillingDay > 31 {
		return fmt.Errorf("%w: billing day %d outside 1..31", ErrInvalidConfiguration, c.BillingDay)
	}
	if !c.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidConfiguration, c.Frequency)
	}
	if c.StartDate.IsZero() {
		return fmt.Errorf("%w: start date is required", ErrInvalidConfiguration)
	}
	return nil
}

// Billable reports whether the configuration should produce obligations.
func (c Configuration) Billable() bool {
	return c.Enabled && c.Active
}
