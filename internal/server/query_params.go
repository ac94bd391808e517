package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/clientdesk/internal/billingcycle"
)

const (
	dateOnlyLayout = "2006-01-02"
	monthLayout    = "2006-01"
)

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseOptionalTime accepts RFC3339 timestamps or plain dates, which are
// read as UTC midnight.
func parseOptionalTime(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		parsed = parsed.UTC()
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		return &parsed, nil
	}
	return nil, errors.New("invalid_time")
}

// parseMonthRange turns a 2006-01 month into its first and last day.
func parseMonthRange(value string) (*time.Time, *time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil, nil
	}
	parsed, err := time.Parse(monthLayout, trimmed)
	if err != nil {
		return nil, nil, errors.New("invalid_month")
	}
	from := billingcycle.MonthStart(parsed)
	to := billingcycle.MonthEnd(parsed)
	return &from, &to, nil
}
