package core

import (
	"errors"
	"testing"
	"time"
)

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		ID:          1,
		UserID:      1,
		Kind:        Expense,
		Type:        "groceries",
		Description: "weekly shop",
		Amount:      Money{Cents: 6032},
		Date:        NewDate(2025, time.June, 10),
	}

	tests := []struct {
		name    string
		mutate  func(tx *Transaction)
		wantErr error
	}{
		{"valid", func(tx *Transaction) {}, nil},
		{"bad kind", func(tx *Transaction) { tx.Kind = "transfer" }, ErrInvalidKind},
		{"empty description", func(tx *Transaction) { tx.Description = "  " }, ErrEmptyDescription},
		{"zero amount", func(tx *Transaction) { tx.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(tx *Transaction) { tx.Amount = Money{Cents: -100} }, ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := valid
			tt.mutate(&tx)
			err := tx.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRecurringTemplateValidate(t *testing.T) {
	valid := RecurringTemplate{
		ID:          7,
		UserID:      1,
		Kind:        Income,
		Type:        "salary",
		Description: "monthly salary",
		DayOfMonth:  27,
		Slots: map[time.Month]Slot{
			time.June: {Amount: Money{Cents: 180000}, Date: NewDate(2025, time.June, 27)},
			time.July: {Amount: Money{Cents: 180000}, Date: NewDate(2025, time.July, 27)},
		},
	}

	if err := valid.Validate(); err != nil {
		t.Fatalf("valid template rejected: %v", err)
	}

	t.Run("day of month out of range", func(t *testing.T) {
		tpl := valid
		tpl.DayOfMonth = 32
		if err := tpl.Validate(); !errors.Is(err, ErrInvalidDay) {
			t.Fatalf("expected ErrInvalidDay, got %v", err)
		}
	})

	t.Run("slot without date", func(t *testing.T) {
		tpl := valid
		tpl.Slots = map[time.Month]Slot{
			time.June: {Amount: Money{Cents: 5000}},
		}
		if err := tpl.Validate(); !errors.Is(err, ErrInvariantViolation) {
			t.Fatalf("expected ErrInvariantViolation, got %v", err)
		}
	})

	t.Run("slot without amount", func(t *testing.T) {
		tpl := valid
		tpl.Slots = map[time.Month]Slot{
			time.June: {Date: NewDate(2025, time.June, 27)},
		}
		if err := tpl.Validate(); !errors.Is(err, ErrInvariantViolation) {
			t.Fatalf("expected ErrInvariantViolation, got %v", err)
		}
	})

	t.Run("slot dated outside its month", func(t *testing.T) {
		tpl := valid
		tpl.Slots = map[time.Month]Slot{
			time.June: {Amount: Money{Cents: 5000}, Date: NewDate(2025, time.July, 18)},
		}
		if err := tpl.Validate(); !errors.Is(err, ErrInvariantViolation) {
			t.Fatalf("expected ErrInvariantViolation, got %v", err)
		}
	})
}

func TestRecurringTemplateMonths(t *testing.T) {
	tpl := RecurringTemplate{
		Slots: map[time.Month]Slot{
			time.December: {Amount: Money{Cents: 100}, Date: NewDate(2025, time.December, 1)},
			time.January:  {Amount: Money{Cents: 100}, Date: NewDate(2025, time.January, 1)},
			time.June:     {Amount: Money{Cents: 100}, Date: NewDate(2025, time.June, 1)},
		},
	}
	months := tpl.Months()
	want := []time.Month{time.January, time.June, time.December}
	if len(months) != len(want) {
		t.Fatalf("expected %d months, got %d", len(want), len(months))
	}
	for i := range want {
		if months[i] != want[i] {
			t.Fatalf("months[%d] = %s, want %s", i, months[i], want[i])
		}
	}
}

func TestSettingsValidate(t *testing.T) {
	for _, day := range []int{1, 14, 31} {
		s := Settings{UserID: 1, ClosingDay: day}
		if err := s.Validate(); err != nil {
			t.Errorf("closing day %d rejected: %v", day, err)
		}
	}
	for _, day := range []int{0, -1, 32} {
		s := Settings{UserID: 1, ClosingDay: day}
		if err := s.Validate(); !errors.Is(err, ErrInvalidClosingDay) {
			t.Errorf("closing day %d: expected ErrInvalidClosingDay, got %v", day, err)
		}
	}
}
