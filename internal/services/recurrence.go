package services

import (
	"fmt"
	"time"

	"bilancio/internal/core"
)

// ExpandTemplate materializes the candidate rows one recurring template
// contributes to the accounting period anchored at anchorMonth (the calendar
// month of the period's end date).
//
// Because an accounting period usually straddles a calendar month boundary,
// both the anchor month's slot and the previous month's slot are candidates.
// Expansion is deliberately decoupled from period membership: both candidates
// may be emitted here, and FilterInPeriod keeps the one whose materialized
// date actually lies inside the period. Row keys carry the slot month, so the
// two candidates can never collide.
//
// A slot that exists but is incomplete is an ErrInvariantViolation: the
// expander refuses to materialize a row rather than guess a value.
func ExpandTemplate(tpl core.RecurringTemplate, anchorMonth time.Month) ([]core.MonthRow, error) {
	var rows []core.MonthRow
	for _, month := range []time.Month{anchorMonth, PreviousMonth(anchorMonth)} {
		slot, ok := tpl.SlotFor(month)
		if !ok {
			continue
		}
		if slot.Date.IsZero() || slot.Amount.Validate() != nil {
			return nil, fmt.Errorf("%w: template %d, month %s", core.ErrInvariantViolation, tpl.ID, month)
		}
		rows = append(rows, core.MonthRow{
			RowKey:      fmt.Sprintf("recurring-%d-%d", tpl.ID, int(month)),
			Source:      core.SourceRecurring,
			ID:          tpl.ID,
			Kind:        tpl.Kind,
			Type:        tpl.Type,
			Description: tpl.Description,
			Amount:      slot.Amount,
			Date:        slot.Date,
		})
	}
	return rows, nil
}

// PreviousMonth returns the calendar month before m, wrapping December before
// January.
func PreviousMonth(m time.Month) time.Month {
	if m == time.January {
		return time.December
	}
	return m - 1
}

// MaterializeSlots builds the slot map for a new recurring template: one slot
// per requested month, dated on the template's day-of-month clamped to each
// month's length (Feb 31 becomes Feb 28/29), all carrying the same amount.
// Per-month overrides are applied afterwards through single-slot updates.
func MaterializeSlots(year, dayOfMonth int, months []time.Month, amount core.Money) (map[time.Month]core.Slot, error) {
	if dayOfMonth < 1 || dayOfMonth > 31 {
		return nil, fmt.Errorf("%w: day of month %d", core.ErrInvalidDay, dayOfMonth)
	}
	if err := amount.Validate(); err != nil {
		return nil, err
	}

	slots := make(map[time.Month]core.Slot, len(months))
	for _, month := range months {
		if month < time.January || month > time.December {
			return nil, fmt.Errorf("%w: %d", core.ErrInvalidMonth, int(month))
		}
		day := core.ClampDayToMonth(year, month, dayOfMonth)
		slots[month] = core.Slot{
			Amount: amount,
			Date:   core.NewDate(year, month, day),
		}
	}
	return slots, nil
}
