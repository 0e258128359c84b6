package services

import (
	"context"
	"testing"
	"time"

	"bilancio/internal/cache"
	"bilancio/internal/core"
)

// fakeRepo is an in-memory Repository for service tests.
type fakeRepo struct {
	transactions map[int64]core.Transaction
	templates    map[int64]core.RecurringTemplate
	settings     map[int64]core.Settings
	nextID       int64
	listCalls    int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		transactions: make(map[int64]core.Transaction),
		templates:    make(map[int64]core.RecurringTemplate),
		settings:     make(map[int64]core.Settings),
		nextID:       1,
	}
}

func (r *fakeRepo) ListTransactions(_ context.Context, userID int64) ([]core.Transaction, error) {
	r.listCalls++
	var out []core.Transaction
	for _, tx := range r.transactions {
		if tx.UserID == userID {
			out = append(out, tx)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListRecurringTemplates(_ context.Context, userID int64) ([]core.RecurringTemplate, error) {
	var out []core.RecurringTemplate
	for _, tpl := range r.templates {
		if tpl.UserID == userID {
			out = append(out, tpl)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetSettings(_ context.Context, userID int64) (core.Settings, error) {
	if s, ok := r.settings[userID]; ok {
		return s, nil
	}
	return core.Settings{UserID: userID, ClosingDay: 14}, nil
}

func (r *fakeRepo) CreateTransaction(_ context.Context, tx core.Transaction) (int64, error) {
	tx.ID = r.nextID
	r.nextID++
	r.transactions[tx.ID] = tx
	return tx.ID, nil
}

func (r *fakeRepo) DeleteTransaction(_ context.Context, _, id int64) error {
	delete(r.transactions, id)
	return nil
}

func (r *fakeRepo) CreateRecurringTemplate(_ context.Context, tpl core.RecurringTemplate) (int64, error) {
	tpl.ID = r.nextID
	r.nextID++
	r.templates[tpl.ID] = tpl
	return tpl.ID, nil
}

func (r *fakeRepo) DeleteRecurringTemplate(_ context.Context, _, id int64) error {
	delete(r.templates, id)
	return nil
}

func (r *fakeRepo) UpdateRecurringSlot(_ context.Context, _, templateID int64, month int, slot core.Slot) error {
	tpl := r.templates[templateID]
	slots := make(map[time.Month]core.Slot, len(tpl.Slots))
	for m, s := range tpl.Slots {
		slots[m] = s
	}
	slots[time.Month(month)] = slot
	tpl.Slots = slots
	r.templates[templateID] = tpl
	return nil
}

func (r *fakeRepo) UpdateSettings(_ context.Context, settings core.Settings) error {
	r.settings[settings.UserID] = settings
	return nil
}

type fakePublisher struct {
	published []int64
}

func (p *fakePublisher) PublishOverviewInvalidate(_ context.Context, userID int64) error {
	p.published = append(p.published, userID)
	return nil
}

func fixedToday(d core.Date) func() core.Date {
	return func() core.Date { return d }
}

func TestOverviewServiceCachesPerInputs(t *testing.T) {
	repo := newFakeRepo()
	repo.transactions[1] = singleTx(1, core.Expense, 6032, core.NewDate(2025, time.June, 20))

	overviews := cache.NewLRUCache[core.Overview](16, time.Minute)
	svc := NewOverviewService(repo, overviews).WithToday(fixedToday(core.NewDate(2025, time.June, 12)))

	ref := core.NewDate(2025, time.June, 10)
	first, err := svc.Overview(context.Background(), 1, ref, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Overview(context.Background(), 1, ref, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.listCalls != 1 {
		t.Fatalf("expected 1 storage read, got %d", repo.listCalls)
	}
	if first.Totals != second.Totals {
		t.Fatal("cached overview differs from computed one")
	}

	// A different closing day is a different period and misses the cache.
	if _, err := svc.Overview(context.Background(), 1, ref, 14); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.listCalls != 2 {
		t.Fatalf("expected cache miss for new closing day, reads = %d", repo.listCalls)
	}
}

func TestLedgerServiceInvalidatesAndPublishes(t *testing.T) {
	repo := newFakeRepo()
	overviews := cache.NewLRUCache[core.Overview](16, time.Minute)
	publisher := &fakePublisher{}
	reads := NewOverviewService(repo, overviews).WithToday(fixedToday(core.NewDate(2025, time.June, 12)))
	writes := NewLedgerService(repo, reads, publisher)

	ctx := context.Background()
	ref := core.NewDate(2025, time.June, 10)

	if _, err := reads.Overview(ctx, 1, ref, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tx := singleTx(0, core.Expense, 6032, core.NewDate(2025, time.June, 20))
	if _, err := writes.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The stale cached overview must be gone: the next read recomputes and
	// sees the new transaction.
	overview, err := reads.Overview(ctx, 1, ref, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if overview.Totals.ExpensesMonth.Cents != 6032 {
		t.Fatalf("overview still stale after mutation: %d", overview.Totals.ExpensesMonth.Cents)
	}
	if len(publisher.published) != 1 || publisher.published[0] != 1 {
		t.Fatalf("expected one published invalidation for user 1, got %v", publisher.published)
	}
}

func TestLedgerServiceRejectsInvalidInput(t *testing.T) {
	repo := newFakeRepo()
	writes := NewLedgerService(repo, nil, nil)
	ctx := context.Background()

	bad := singleTx(0, "transfer", 100, core.NewDate(2025, time.June, 1))
	if _, err := writes.CreateTransaction(ctx, bad); err == nil {
		t.Fatal("expected validation error for bad kind")
	}
	if err := writes.UpdateSettings(ctx, core.Settings{UserID: 1, ClosingDay: 0}); err == nil {
		t.Fatal("expected validation error for closing day 0")
	}
	if err := writes.UpdateRecurringSlot(ctx, 1, 1, time.June, core.Slot{}); err == nil {
		t.Fatal("expected invariant violation for empty slot")
	}
	julySlot := core.Slot{Amount: core.Money{Cents: 9900}, Date: core.NewDate(2025, time.July, 18)}
	if err := writes.UpdateRecurringSlot(ctx, 1, 1, time.June, julySlot); err == nil {
		t.Fatal("expected invariant violation for a june slot dated in july")
	}
	if len(repo.transactions) != 0 {
		t.Fatal("invalid transaction reached storage")
	}
}

func TestUpdateRecurringSlotLeavesOtherMonthsUntouched(t *testing.T) {
	repo := newFakeRepo()
	writes := NewLedgerService(repo, nil, nil)
	ctx := context.Background()

	slots, err := MaterializeSlots(2025, 15, []time.Month{
		time.January, time.February, time.March, time.April, time.May, time.June,
		time.July, time.August, time.September, time.October, time.November, time.December,
	}, core.Money{Cents: 4400})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, err := writes.CreateRecurringTemplate(ctx, core.RecurringTemplate{
		UserID: 1, Kind: core.Expense, Type: "rent", Description: "flat rent",
		DayOfMonth: 15, Slots: slots,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	before := repo.templates[id]
	err = writes.UpdateRecurringSlot(ctx, 1, id, time.June, core.Slot{
		Amount: core.Money{Cents: 9900},
		Date:   core.NewDate(2025, time.June, 18),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := repo.templates[id]

	june := after.Slots[time.June]
	if june.Amount.Cents != 9900 || june.Date.ISO() != "2025-06-18" {
		t.Fatalf("june slot not updated: %+v", june)
	}
	for month := time.January; month <= time.December; month++ {
		if month == time.June {
			continue
		}
		if after.Slots[month] != before.Slots[month] {
			t.Fatalf("%s slot changed by a june-only update", month)
		}
	}
}

func TestMoneyStateUsesStoredSettings(t *testing.T) {
	repo := newFakeRepo()
	repo.settings[1] = core.Settings{UserID: 1, ClosingDay: 5, Balance: core.Money{Cents: 210032}}

	svc := NewOverviewService(repo, nil).WithToday(fixedToday(core.NewDate(2025, time.June, 23)))

	state, err := svc.MoneyState(context.Background(), 1, core.NewDate(2025, time.June, 23))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Empty ledger: budget is balance spread over the 12 days left until July 5.
	want := 2100.32 / 12
	if diff := state.Budget - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("budget = %v, want %v", state.Budget, want)
	}
	if state.Balance.Cents != 210032 {
		t.Fatalf("balance = %d", state.Balance.Cents)
	}
}
