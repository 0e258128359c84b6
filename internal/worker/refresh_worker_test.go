package worker

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
)

type fakeRefresher struct {
	mu          sync.Mutex
	invalidated []int64
	built       []int64
	buildErr    error
}

func (f *fakeRefresher) Invalidate(userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, userID)
}

func (f *fakeRefresher) Overview(ctx context.Context, userID int64, ref core.Date, closingDay int) (core.Overview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.buildErr != nil {
		return core.Overview{}, f.buildErr
	}
	f.built = append(f.built, userID)
	return core.Overview{UserID: userID, PeriodStart: ref, PeriodEnd: ref}, nil
}

type fakeSettings struct {
	closingDay int
	err        error
}

func (f *fakeSettings) GetSettings(ctx context.Context, userID int64) (core.Settings, error) {
	if f.err != nil {
		return core.Settings{}, f.err
	}
	return core.Settings{UserID: userID, ClosingDay: f.closingDay}, nil
}

type fakeUsers struct {
	ids []int64
	err error
}

func (f *fakeUsers) ListActiveUserIDs(ctx context.Context) ([]int64, error) {
	return f.ids, f.err
}

func TestHandleInvalidateMessageInvalidatesThenWarms(t *testing.T) {
	refresher := &fakeRefresher{}
	w := NewRefreshWorker(refresher, &fakeSettings{closingDay: 14}, &fakeUsers{})

	err := w.HandleInvalidateMessage(context.Background(), amqp.NewOverviewInvalidateMessage(7))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}

	if len(refresher.invalidated) != 1 || refresher.invalidated[0] != 7 {
		t.Errorf("expected invalidation for user 7, got %v", refresher.invalidated)
	}
	if len(refresher.built) != 1 || refresher.built[0] != 7 {
		t.Errorf("expected rebuild for user 7, got %v", refresher.built)
	}
}

func TestHandleInvalidateMessagePropagatesBuildError(t *testing.T) {
	refresher := &fakeRefresher{buildErr: errors.New("storage down")}
	w := NewRefreshWorker(refresher, &fakeSettings{closingDay: 14}, &fakeUsers{})

	err := w.HandleInvalidateMessage(context.Background(), amqp.NewOverviewInvalidateMessage(7))
	if err == nil {
		t.Fatal("expected error when rebuild fails")
	}
	// Cache must still have been dropped; stale data is worse than a miss.
	if len(refresher.invalidated) != 1 {
		t.Errorf("expected invalidation despite rebuild failure, got %v", refresher.invalidated)
	}
}

func TestWarmAllCoversEveryUser(t *testing.T) {
	refresher := &fakeRefresher{}
	w := NewRefreshWorker(refresher, &fakeSettings{closingDay: 5}, &fakeUsers{ids: []int64{1, 2, 3, 4, 5}})

	if err := w.WarmAll(context.Background()); err != nil {
		t.Fatalf("warm all: %v", err)
	}

	sort.Slice(refresher.built, func(i, j int) bool { return refresher.built[i] < refresher.built[j] })
	if len(refresher.built) != 5 {
		t.Fatalf("expected 5 rebuilds, got %v", refresher.built)
	}
	for i, id := range []int64{1, 2, 3, 4, 5} {
		if refresher.built[i] != id {
			t.Errorf("missing rebuild for user %d: %v", id, refresher.built)
		}
	}
}

func TestWarmAllKeepsGoingPastUserErrors(t *testing.T) {
	refresher := &fakeRefresher{buildErr: errors.New("storage down")}
	w := NewRefreshWorker(refresher, &fakeSettings{closingDay: 5}, &fakeUsers{ids: []int64{1, 2}})

	// Per-user failures are logged, not fatal for the sweep.
	if err := w.WarmAll(context.Background()); err != nil {
		t.Fatalf("warm all should not fail on per-user errors: %v", err)
	}
	if len(refresher.invalidated) != 2 {
		t.Errorf("expected both users invalidated, got %v", refresher.invalidated)
	}
}

func TestWarmAllListError(t *testing.T) {
	w := NewRefreshWorker(&fakeRefresher{}, &fakeSettings{closingDay: 5}, &fakeUsers{err: errors.New("db closed")})
	if err := w.WarmAll(context.Background()); err == nil {
		t.Fatal("expected error when listing users fails")
	}
}
