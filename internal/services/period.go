// Package services implements the accounting-month engine: period resolution,
// recurring-template expansion, row aggregation and budget projection, plus
// the orchestration that feeds them from storage.
//
// Everything below the orchestration layer is a pure function of its inputs:
// no hidden I/O, no shared state, safe to recompute on every data refresh.
package services

import (
	"fmt"
	"time"

	"bilancio/internal/core"
)

// ResolvePeriod computes the accounting period containing ref for the given
// closing day.
//
// Rule: if day(ref) > closingDay the period ends on the closing day of the
// next calendar month, otherwise on the closing day of ref's month, clamped
// to the month length. The start is the previous month's materialized closing
// day plus one, so consecutive periods tile the calendar exactly: every date
// belongs to exactly one period, including around short months where the
// closing day clamps.
func ResolvePeriod(ref core.Date, closingDay int) (core.Period, error) {
	if closingDay < 1 || closingDay > 31 {
		return core.Period{}, fmt.Errorf("%w: got %d", core.ErrInvalidClosingDay, closingDay)
	}

	anchor := core.NewDate(ref.Year(), ref.Month(), 1)
	if ref.Day() > closingDay {
		anchor = anchor.AddMonths(1)
	}
	return periodEndingIn(anchor, closingDay), nil
}

// periodEndingIn materializes the period whose end falls in anchor's calendar
// month. Start and end each clamp the closing day independently in their own
// month; deriving start from the clamped end instead would leave gaps after
// short months.
func periodEndingIn(anchor core.Date, closingDay int) core.Period {
	end := core.NewDate(anchor.Year(), anchor.Month(),
		core.ClampDayToMonth(anchor.Year(), anchor.Month(), closingDay))

	prev := anchor.AddMonths(-1)
	prevEnd := core.NewDate(prev.Year(), prev.Month(),
		core.ClampDayToMonth(prev.Year(), prev.Month(), closingDay))

	return core.Period{Start: prevEnd.AddDays(1), End: end}
}

// ShiftPeriod moves the accounting month by deltaMonths whole periods and
// returns the start of the target period as the new reference date, so
// next/previous navigation always re-anchors to a period start.
func ShiftPeriod(ref core.Date, closingDay, deltaMonths int) (core.Date, error) {
	current, err := ResolvePeriod(ref, closingDay)
	if err != nil {
		return core.Date{}, err
	}

	anchor := core.NewDate(current.End.Year(), current.End.Month(), 1).AddMonths(deltaMonths)
	return periodEndingIn(anchor, closingDay).Start, nil
}

// DaysRemaining returns the day count from ref to the period's end, floored
// to 1 so it can be used directly as the budget divisor.
func DaysRemaining(ref core.Date, closingDay int) (int, error) {
	period, err := ResolvePeriod(ref, closingDay)
	if err != nil {
		return 0, err
	}
	days := core.DiffDays(period.End, ref)
	if days < 1 {
		days = 1
	}
	return days, nil
}

// AnchorMonth returns the calendar month the period's row resolution keys on:
// the month of the period's end date. The previous calendar month is probed
// as well, because the period tail may reach into it.
func AnchorMonth(period core.Period) time.Month {
	return period.End.Month()
}
