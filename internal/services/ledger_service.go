package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"bilancio/internal/core"
)

// InvalidationPublisher broadcasts that a user's derived overviews are stale.
// The AMQP client implements it; a nil publisher keeps invalidation local.
type InvalidationPublisher interface {
	PublishOverviewInvalidate(ctx context.Context, userID int64) error
}

// LedgerService is the write side: it persists transactions, recurring
// templates and settings, then invalidates the local overview cache and
// broadcasts the invalidation so other processes can recompute. Mutations
// never block on the broadcast; a failed publish only delays remote refresh.
type LedgerService struct {
	repo      Repository
	overviews *OverviewService
	publisher InvalidationPublisher
}

func NewLedgerService(repo Repository, overviews *OverviewService, publisher InvalidationPublisher) *LedgerService {
	return &LedgerService{
		repo:      repo,
		overviews: overviews,
		publisher: publisher,
	}
}

// CreateTransaction validates and stores a one-off entry.
func (s *LedgerService) CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	if err := tx.Validate(); err != nil {
		return 0, err
	}

	id, err := s.repo.CreateTransaction(ctx, tx)
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}

	s.invalidate(ctx, tx.UserID)
	slog.InfoContext(ctx, "Transaction created",
		"id", id,
		"user_id", tx.UserID,
		"kind", string(tx.Kind),
		"amount_cents", tx.Amount.Cents,
		"date", tx.Date.ISO())
	return id, nil
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, id int64) error {
	if err := s.repo.DeleteTransaction(ctx, userID, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.invalidate(ctx, userID)
	slog.InfoContext(ctx, "Transaction deleted", "id", id, "user_id", userID)
	return nil
}

// CreateRecurringTemplate validates and stores a template with its month
// slots already materialized (see MaterializeSlots).
func (s *LedgerService) CreateRecurringTemplate(ctx context.Context, tpl core.RecurringTemplate) (int64, error) {
	if err := tpl.Validate(); err != nil {
		return 0, err
	}

	id, err := s.repo.CreateRecurringTemplate(ctx, tpl)
	if err != nil {
		return 0, fmt.Errorf("create recurring template: %w", err)
	}

	s.invalidate(ctx, tpl.UserID)
	slog.InfoContext(ctx, "Recurring template created",
		"id", id,
		"user_id", tpl.UserID,
		"kind", string(tpl.Kind),
		"day_of_month", tpl.DayOfMonth,
		"active_months", len(tpl.Slots))
	return id, nil
}

func (s *LedgerService) DeleteRecurringTemplate(ctx context.Context, userID, id int64) error {
	if err := s.repo.DeleteRecurringTemplate(ctx, userID, id); err != nil {
		return fmt.Errorf("delete recurring template: %w", err)
	}
	s.invalidate(ctx, userID)
	slog.InfoContext(ctx, "Recurring template deleted", "id", id, "user_id", userID)
	return nil
}

// UpdateRecurringSlot overwrites a single month's occurrence of a template.
// The write is scoped to that one slot row; the other eleven months are
// untouched by construction.
func (s *LedgerService) UpdateRecurringSlot(ctx context.Context, userID, templateID int64, month time.Month, slot core.Slot) error {
	if month < time.January || month > time.December {
		return fmt.Errorf("%w: %d", core.ErrInvalidMonth, int(month))
	}
	if slot.Date.IsZero() {
		return fmt.Errorf("%w: slot date missing", core.ErrInvariantViolation)
	}
	if slot.Date.Month() != month {
		return fmt.Errorf("%w: slot date %s is not in %s", core.ErrInvariantViolation, slot.Date.ISO(), month)
	}
	if err := slot.Amount.Validate(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvariantViolation, err)
	}

	if err := s.repo.UpdateRecurringSlot(ctx, userID, templateID, int(month), slot); err != nil {
		return fmt.Errorf("update recurring slot: %w", err)
	}

	s.invalidate(ctx, userID)
	slog.InfoContext(ctx, "Recurring slot updated",
		"template_id", templateID,
		"user_id", userID,
		"month", month.String(),
		"amount_cents", slot.Amount.Cents,
		"date", slot.Date.ISO())
	return nil
}

// UpdateSettings stores the user's closing day and balance.
func (s *LedgerService) UpdateSettings(ctx context.Context, settings core.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	if err := s.repo.UpdateSettings(ctx, settings); err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	s.invalidate(ctx, settings.UserID)
	slog.InfoContext(ctx, "Settings updated",
		"user_id", settings.UserID,
		"closing_day", settings.ClosingDay,
		"balance_cents", settings.Balance.Cents)
	return nil
}

func (s *LedgerService) invalidate(ctx context.Context, userID int64) {
	if s.overviews != nil {
		s.overviews.Invalidate(userID)
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOverviewInvalidate(ctx, userID); err != nil {
		// The mutation already succeeded locally; remote caches catch up
		// on their next rebuild.
		slog.ErrorContext(ctx, "Failed to publish overview invalidation",
			"user_id", userID, "error", err)
	}
}
