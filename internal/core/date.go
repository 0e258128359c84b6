package core

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidFormat = errors.New("invalid date format, want YYYY-MM-DD")
	ErrNoValidDate   = errors.New("no valid date within 24-month horizon")
)

const isoLayout = "2006-01-02"

// Date is a calendar date pinned to UTC midnight. The canonical storage and
// wire representation is the ISO string YYYY-MM-DD; months are always the
// 1-based time.Month throughout the codebase.
type Date struct {
	time.Time
}

// NewDate builds a Date from its components. time.Date normalization applies,
// so callers that need clamping instead of rollover must clamp first with
// ClampDayToMonth.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current date in UTC.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// ParseISO parses a YYYY-MM-DD string. Malformed input is rejected with
// ErrInvalidFormat, never coerced.
func ParseISO(s string) (Date, error) {
	if len(s) != len(isoLayout) {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	t, err := time.Parse(isoLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	return Date{Time: t}, nil
}

// ISO formats the date as YYYY-MM-DD. Round-trips with ParseISO.
func (d Date) ISO() string {
	return d.Format(isoLayout)
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.Time.Before(other.Time)
}

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool {
	return d.Time.After(other.Time)
}

// Equal reports whether d and other are the same calendar date.
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

// DaysInMonth returns the Gregorian length of the given month, leap-year aware.
func DaysInMonth(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ClampDayToMonth clamps day into the valid range for (year, month). Used
// whenever a fixed day-of-month must be materialized into a real date.
func ClampDayToMonth(year int, month time.Month, day int) int {
	if day < 1 {
		return 1
	}
	if dim := DaysInMonth(year, month); day > dim {
		return dim
	}
	return day
}

// AddMonths shifts the date by whole months, preserving the day-of-month where
// possible and clamping otherwise (Jan 31 + 1 month = Feb 28/29).
func (d Date) AddMonths(delta int) Date {
	anchor := time.Date(d.Year(), d.Month()+time.Month(delta), 1, 0, 0, 0, 0, time.UTC)
	day := ClampDayToMonth(anchor.Year(), anchor.Month(), d.Day())
	return NewDate(anchor.Year(), anchor.Month(), day)
}

// AddDays shifts the date by whole days, with month and year rollover.
func (d Date) AddDays(delta int) Date {
	return Date{Time: d.Time.AddDate(0, 0, delta)}
}

// DiffDays returns the signed day count a minus b. Both dates are UTC
// midnights, so the division is exact and immune to daylight-saving skew.
func DiffDays(a, b Date) int {
	return int(a.Time.Sub(b.Time) / (24 * time.Hour))
}

// NextAvailableDayOfMonth returns the earliest date >= start whose day-of-month
// equals targetDay, skipping months too short to contain it. The 24-month bound
// is a safety valve: reaching it means a broken invariant, not a domain case.
func NextAvailableDayOfMonth(start Date, targetDay int) (Date, error) {
	if targetDay < 1 || targetDay > 31 {
		return Date{}, fmt.Errorf("%w: day of month %d", ErrInvalidDay, targetDay)
	}

	year, month := start.Year(), start.Month()
	for i := 0; i < 24; i++ {
		if targetDay <= DaysInMonth(year, month) {
			candidate := NewDate(year, month, targetDay)
			if !candidate.Before(start) {
				return candidate, nil
			}
		}
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return Date{}, ErrNoValidDate
}

// Period is one accounting month: the window of dates between two consecutive
// closing days, materialized as the inclusive range [Start, End]. Periods are
// derived values and tile the calendar with no gap or overlap.
type Period struct {
	Start Date
	End   Date
}

// Contains reports whether d falls inside the period, both bounds included.
func (p Period) Contains(d Date) bool {
	return !d.Before(p.Start) && !d.After(p.End)
}
