// Package worker rebuilds cached overviews in the background. The HTTP
// process serves whatever is cached; this process keeps the cache warm by
// consuming invalidation messages and sweeping all known users periodically.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
)

// OverviewRefresher is the read-side surface the worker warms.
type OverviewRefresher interface {
	Invalidate(userID int64)
	Overview(ctx context.Context, userID int64, ref core.Date, closingDay int) (core.Overview, error)
}

// SettingsReader resolves the closing day a user's current period hangs on.
type SettingsReader interface {
	GetSettings(ctx context.Context, userID int64) (core.Settings, error)
}

// UserLister enumerates users for the periodic warm sweep.
type UserLister interface {
	ListActiveUserIDs(ctx context.Context) ([]int64, error)
}

const warmConcurrency = 4

type RefreshWorker struct {
	overviews OverviewRefresher
	settings  SettingsReader
	users     UserLister
}

func NewRefreshWorker(overviews OverviewRefresher, settings SettingsReader, users UserLister) *RefreshWorker {
	return &RefreshWorker{
		overviews: overviews,
		settings:  settings,
		users:     users,
	}
}

// HandleInvalidateMessage processes one invalidation: drop the user's cached
// overviews, then rebuild the current-period one so the next read is a hit.
func (w *RefreshWorker) HandleInvalidateMessage(ctx context.Context, msg *amqp.OverviewInvalidateMessage) error {
	slog.InfoContext(ctx, "Processing invalidate message", "user_id", msg.UserID)

	w.overviews.Invalidate(msg.UserID)

	if err := w.WarmUser(ctx, msg.UserID); err != nil {
		return fmt.Errorf("warm overview for user %d: %w", msg.UserID, err)
	}
	return nil
}

// WarmUser recomputes and caches the overview of the period containing today.
func (w *RefreshWorker) WarmUser(ctx context.Context, userID int64) error {
	settings, err := w.settings.GetSettings(ctx, userID)
	if err != nil {
		return fmt.Errorf("get settings: %w", err)
	}

	today := core.Today()
	overview, err := w.overviews.Overview(ctx, userID, today, settings.ClosingDay)
	if err != nil {
		return fmt.Errorf("build overview: %w", err)
	}

	slog.InfoContext(ctx, "Overview warmed",
		"user_id", userID,
		"period_start", overview.PeriodStart.ISO(),
		"period_end", overview.PeriodEnd.ISO())
	return nil
}

// WarmAll rebuilds the current-period overview of every known user. Expiry
// tags depend on the calendar day, so a daily sweep keeps cached overviews
// honest even without writes.
func (w *RefreshWorker) WarmAll(ctx context.Context) error {
	userIDs, err := w.users.ListActiveUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(userIDs) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Warming overviews", "users", len(userIDs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	for _, userID := range userIDs {
		g.Go(func() error {
			w.overviews.Invalidate(userID)
			if err := w.WarmUser(ctx, userID); err != nil {
				slog.ErrorContext(ctx, "Failed to warm overview", "user_id", userID, "error", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// RunPeriodicWarm sweeps all users on the given interval until ctx ends. One
// sweep runs immediately on startup to recover from downtime.
func (w *RefreshWorker) RunPeriodicWarm(ctx context.Context, interval time.Duration) error {
	if err := w.WarmAll(ctx); err != nil {
		slog.ErrorContext(ctx, "Startup warm sweep failed", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.WarmAll(ctx); err != nil {
				slog.ErrorContext(ctx, "Warm sweep failed", "error", err)
			}
		}
	}
}
