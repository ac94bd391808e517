package billingcycle

import "time"

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's month at midnight UTC.
func MonthStart(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last day of t's month at midnight UTC.
func MonthEnd(t time.Time) time.Time {
	start := MonthStart(t)
	return time.Date(start.Year(), start.Month(), DaysInMonth(start.Year(), start.Month()), 0, 0, 0, 0, time.UTC)
}

func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDay returns day `day` of the given month, or the month's last day
// when the month is shorter.
func ClampDay(year int, month time.Month, day int) time.Time {
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// AddClampedMonths moves t by months while keeping the day of month, clamped
// to the target month's length. Jan 31 + 1 month is Feb 28 (or 29).
func AddClampedMonths(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + months
	newY := y + total/12
	newM := total % 12
	if newM < 0 {
		newM += 12
		newY--
	}
	clamped := ClampDay(newY, time.Month(newM+1), d)
	h, min, sec := t.Clock()
	return time.Date(clamped.Year(), clamped.Month(), clamped.Day(), h, min, sec, t.Nanosecond(), t.Location())
}
