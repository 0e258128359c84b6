package services

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/cache"
	"bilancio/internal/core"
)

// Repository is the storage surface the engine reads from and writes to. The
// concrete implementation lives in internal/storage.
type Repository interface {
	ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error)
	ListRecurringTemplates(ctx context.Context, userID int64) ([]core.RecurringTemplate, error)
	GetSettings(ctx context.Context, userID int64) (core.Settings, error)

	CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error)
	DeleteTransaction(ctx context.Context, userID, id int64) error
	CreateRecurringTemplate(ctx context.Context, tpl core.RecurringTemplate) (int64, error)
	DeleteRecurringTemplate(ctx context.Context, userID, id int64) error
	UpdateRecurringSlot(ctx context.Context, userID, templateID int64, month int, slot core.Slot) error
	UpdateSettings(ctx context.Context, settings core.Settings) error
}

// OverviewService resolves accounting-period overviews and money state,
// caching computed overviews per (user, referenceDate, closingDay). All
// computation is delegated to the pure pipeline; this layer only loads
// inputs and caches outputs.
type OverviewService struct {
	repo  Repository
	cache *cache.LRUCache[core.Overview]
	today func() core.Date
}

// NewOverviewService creates the read-side service. overviews may be nil to
// disable caching (every call recomputes from storage).
func NewOverviewService(repo Repository, overviews *cache.LRUCache[core.Overview]) *OverviewService {
	return &OverviewService{
		repo:  repo,
		cache: overviews,
		today: core.Today,
	}
}

// WithToday overrides the "today" clock, for tests and for the worker's
// deterministic rebuilds.
func (s *OverviewService) WithToday(today func() core.Date) *OverviewService {
	s.today = today
	return s
}

func overviewCacheKey(userID int64, ref core.Date, closingDay int) string {
	return fmt.Sprintf("%d:%s:%d", userID, ref.ISO(), closingDay)
}

// Overview returns the resolved overview for the accounting period containing
// ref. Cached results are keyed on every computation input except "today":
// expiry tags move with the clock, so cache TTLs are kept short instead.
func (s *OverviewService) Overview(ctx context.Context, userID int64, ref core.Date, closingDay int) (core.Overview, error) {
	key := overviewCacheKey(userID, ref, closingDay)
	if s.cache != nil {
		if overview, ok := s.cache.Get(key); ok {
			slog.DebugContext(ctx, "Overview cache hit", "user_id", userID, "key", key)
			return overview, nil
		}
	}

	singles, err := s.repo.ListTransactions(ctx, userID)
	if err != nil {
		return core.Overview{}, fmt.Errorf("list transactions: %w", err)
	}
	templates, err := s.repo.ListRecurringTemplates(ctx, userID)
	if err != nil {
		return core.Overview{}, fmt.Errorf("list recurring templates: %w", err)
	}

	overview, err := BuildOverview(userID, singles, templates, ref, closingDay, s.today())
	if err != nil {
		return core.Overview{}, fmt.Errorf("build overview: %w", err)
	}

	if s.cache != nil {
		s.cache.Set(key, overview)
	}
	slog.InfoContext(ctx, "Overview resolved",
		"user_id", userID,
		"period_start", overview.PeriodStart.ISO(),
		"period_end", overview.PeriodEnd.ISO(),
		"expense_rows", len(overview.Expenses),
		"income_rows", len(overview.Income))
	return overview, nil
}

// MoneyState computes the derived money summary for the period containing
// ref, using the user's stored closing day and balance. Totals come from the
// finalized overview of that same period, never from a stale one.
func (s *OverviewService) MoneyState(ctx context.Context, userID int64, ref core.Date) (core.MoneyState, error) {
	settings, err := s.repo.GetSettings(ctx, userID)
	if err != nil {
		return core.MoneyState{}, fmt.Errorf("get settings: %w", err)
	}

	overview, err := s.Overview(ctx, userID, ref, settings.ClosingDay)
	if err != nil {
		return core.MoneyState{}, err
	}

	days, err := DaysRemaining(ref, settings.ClosingDay)
	if err != nil {
		return core.MoneyState{}, err
	}

	return RecomputeMoneyState(settings.Balance, overview.Totals, days), nil
}

// Settings returns the user's stored settings, with defaults when nothing
// was saved yet.
func (s *OverviewService) Settings(ctx context.Context, userID int64) (core.Settings, error) {
	return s.repo.GetSettings(ctx, userID)
}

// Invalidate drops every cached overview of one user. Called after any
// mutation of the user's transactions, templates or settings.
func (s *OverviewService) Invalidate(userID int64) {
	if s.cache == nil {
		return
	}
	dropped := s.cache.DeletePrefix(fmt.Sprintf("%d:", userID))
	if dropped > 0 {
		slog.Debug("Overview cache invalidated", "user_id", userID, "dropped", dropped)
	}
}
