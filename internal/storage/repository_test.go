package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bilancio/internal/core"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "bilancio.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestTransactionRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	tx := core.Transaction{
		UserID:      1,
		Kind:        core.Expense,
		Type:        "groceries",
		Description: "weekly shop",
		Amount:      core.Money{Cents: 6032},
		Date:        core.NewDate(2025, time.June, 20),
	}
	id, err := repo.CreateTransaction(ctx, tx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero id")
	}

	list, err := repo.ListTransactions(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(list))
	}
	got := list[0]
	if got.ID != id || got.Kind != core.Expense || got.Amount.Cents != 6032 || got.Date.ISO() != "2025-06-20" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	// Another user sees nothing.
	other, err := repo.ListTransactions(ctx, 2)
	if err != nil {
		t.Fatalf("list other user: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("user isolation broken: %d rows", len(other))
	}
}

func TestDeleteTransaction(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	id, err := repo.CreateTransaction(ctx, core.Transaction{
		UserID: 1, Kind: core.Income, Description: "refund",
		Amount: core.Money{Cents: 1200}, Date: core.NewDate(2025, time.June, 3),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.DeleteTransaction(ctx, 2, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("wrong user delete: expected ErrNotFound, got %v", err)
	}
	if err := repo.DeleteTransaction(ctx, 1, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.DeleteTransaction(ctx, 1, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: expected ErrNotFound, got %v", err)
	}

	list, err := repo.ListTransactions(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("deleted transaction still listed")
	}
}

func TestRecurringTemplateRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	tpl := core.RecurringTemplate{
		UserID:      1,
		Kind:        core.Income,
		Type:        "salary",
		Description: "monthly salary",
		DayOfMonth:  27,
		Slots: map[time.Month]core.Slot{
			time.June: {Amount: core.Money{Cents: 180000}, Date: core.NewDate(2025, time.June, 27)},
			time.July: {Amount: core.Money{Cents: 185000}, Date: core.NewDate(2025, time.July, 27)},
		},
	}
	id, err := repo.CreateRecurringTemplate(ctx, tpl)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := repo.ListRecurringTemplates(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 template, got %d", len(list))
	}
	got := list[0]
	if got.ID != id || got.DayOfMonth != 27 || len(got.Slots) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	june := got.Slots[time.June]
	if june.Amount.Cents != 180000 || june.Date.ISO() != "2025-06-27" {
		t.Fatalf("june slot mismatch: %+v", june)
	}
}

func TestUpdateRecurringSlotTouchesOneRow(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	slots := make(map[time.Month]core.Slot)
	for month := time.January; month <= time.December; month++ {
		day := core.ClampDayToMonth(2025, month, 31)
		slots[month] = core.Slot{
			Amount: core.Money{Cents: 4400},
			Date:   core.NewDate(2025, month, day),
		}
	}
	id, err := repo.CreateRecurringTemplate(ctx, core.RecurringTemplate{
		UserID: 1, Kind: core.Expense, Type: "rent", Description: "flat rent",
		DayOfMonth: 31, Slots: slots,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	err = repo.UpdateRecurringSlot(ctx, 1, id, int(time.June), core.Slot{
		Amount: core.Money{Cents: 9900},
		Date:   core.NewDate(2025, time.June, 18),
	})
	if err != nil {
		t.Fatalf("update slot: %v", err)
	}

	list, err := repo.ListRecurringTemplates(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := list[0]
	for month := time.January; month <= time.December; month++ {
		slot := got.Slots[month]
		if month == time.June {
			if slot.Amount.Cents != 9900 || slot.Date.ISO() != "2025-06-18" {
				t.Fatalf("june slot not updated: %+v", slot)
			}
			continue
		}
		if slot.Amount.Cents != 4400 || !slot.Date.Equal(slots[month].Date) {
			t.Fatalf("%s slot changed by june-only update: %+v", month, slot)
		}
	}

	// Unknown template or foreign user leaves the table alone.
	err = repo.UpdateRecurringSlot(ctx, 2, id, int(time.June), core.Slot{
		Amount: core.Money{Cents: 1}, Date: core.NewDate(2025, time.June, 1),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign user, got %v", err)
	}
}

func TestSettingsDefaultsAndUpsert(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	settings, err := repo.GetSettings(ctx, 1)
	if err != nil {
		t.Fatalf("get defaults: %v", err)
	}
	if settings.ClosingDay != 14 || settings.Balance.Cents != 0 {
		t.Fatalf("unexpected defaults: %+v", settings)
	}

	want := core.Settings{UserID: 1, ClosingDay: 5, Balance: core.Money{Cents: 210032}}
	if err := repo.UpdateSettings(ctx, want); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := repo.UpdateSettings(ctx, want); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	settings, err = repo.GetSettings(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if settings.ClosingDay != 5 || settings.Balance.Cents != 210032 {
		t.Fatalf("settings not stored: %+v", settings)
	}
}
