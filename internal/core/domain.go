package core

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	Income  Kind = "income"
	Expense Kind = "expense"
)

type (
	Kind string

	// Transaction is a one-off income or expense entry.
	Transaction struct {
		ID          int64
		UserID      int64
		Kind        Kind
		Type        string
		Description string
		Amount      Money
		Date        Date
	}

	// Slot is one per-month occurrence override of a recurring template:
	// the amount and concrete date the occurrence takes in that calendar
	// month. A month without a slot is inactive.
	Slot struct {
		Amount Money
		Date   Date
	}

	// RecurringTemplate describes a transaction that recurs on a fixed day
	// of the month in a chosen subset of calendar months. Slots are keyed
	// by 1-based time.Month; no other month convention exists in this
	// codebase.
	RecurringTemplate struct {
		ID          int64
		UserID      int64
		Kind        Kind
		Type        string
		Description string
		DayOfMonth  int
		Slots       map[time.Month]Slot
	}

	// Settings is the per-user configuration that period resolution and
	// budget projection read: the closing day of the accounting month and
	// the current account balance. Mutated only by explicit user action.
	Settings struct {
		UserID     int64
		ClosingDay int
		Balance    Money
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidDate        = errors.New("invalid date")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrInvalidKind        = errors.New("invalid transaction kind")
	ErrInvalidClosingDay  = errors.New("closing day must be between 1 and 31")
	ErrInvariantViolation = errors.New("recurring template slot invariant violation")
)

func (k Kind) Validate() error {
	switch k {
	case Income, Expense:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidKind, string(k))
}

func (t Transaction) Validate() error {
	if err := t.Kind.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 200 {
		return ErrDescriptionTooLong
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if t.Date.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// Validate checks the template's structural invariants. A slot that exists but
// is incomplete (zero date, non-positive amount, or a date outside the slot's
// own month) is the refuse-to-guess case: the expander must never invent a
// value for it.
func (tpl RecurringTemplate) Validate() error {
	if err := tpl.Kind.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(tpl.Description)) == 0 {
		return ErrEmptyDescription
	}
	if tpl.DayOfMonth < 1 || tpl.DayOfMonth > 31 {
		return fmt.Errorf("%w: day of month %d", ErrInvalidDay, tpl.DayOfMonth)
	}
	for month, slot := range tpl.Slots {
		if month < time.January || month > time.December {
			return fmt.Errorf("%w: slot month %d", ErrInvalidMonth, int(month))
		}
		if slot.Date.IsZero() {
			return fmt.Errorf("%w: month %s has no date", ErrInvariantViolation, month)
		}
		if slot.Date.Month() != month {
			return fmt.Errorf("%w: month %s dated %s", ErrInvariantViolation, month, slot.Date.ISO())
		}
		if err := slot.Amount.Validate(); err != nil {
			return fmt.Errorf("%w: month %s: %v", ErrInvariantViolation, month, err)
		}
	}
	return nil
}

// Months returns the template's active months in ascending calendar order.
func (tpl RecurringTemplate) Months() []time.Month {
	months := make([]time.Month, 0, len(tpl.Slots))
	for m := range tpl.Slots {
		months = append(months, m)
	}
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })
	return months
}

// SlotFor returns the slot for a calendar month, if the template is active
// in that month.
func (tpl RecurringTemplate) SlotFor(month time.Month) (Slot, bool) {
	slot, ok := tpl.Slots[month]
	return slot, ok
}

func (s Settings) Validate() error {
	if s.ClosingDay < 1 || s.ClosingDay > 31 {
		return fmt.Errorf("%w: got %d", ErrInvalidClosingDay, s.ClosingDay)
	}
	return nil
}
