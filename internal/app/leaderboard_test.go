package app_test

import (
	"context"
	"testing"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
	"quiz-attempt-service/internal/infra/memory"

	logtest "github.com/sirupsen/logrus/hooks/test"
)

func submit(t *testing.T, store *memory.Store, userID int64, score int) {
	t.Helper()
	if _, err := store.Submissions().Create(context.Background(), domain.Submission{UserID: userID, QuizID: 1, Score: score}); err != nil {
		t.Fatalf("create submission: %v", err)
	}
}

func TestRanksAreNotPropagated(t *testing.T) {
	ctx := context.Background()
	log, _ := logtest.NewNullLogger()
	store := memory.NewStore()
	updater := app.NewLeaderboardUpdater(store, nil, log)

	submit(t, store, 1, 100)
	submit(t, store, 2, 80)
	for _, id := range []int64{1, 2} {
		if _, err := updater.Recompute(ctx, id); err != nil {
			t.Fatalf("recompute %d: %v", id, err)
		}
	}
	r1, _ := updater.Rank(ctx, 1)
	r2, _ := updater.Rank(ctx, 2)
	if r1.Rank != 1 || r2.Rank != 2 {
		t.Fatalf("expected ranks 1 and 2, got %d and %d", r1.Rank, r2.Rank)
	}

	submit(t, store, 3, 90)
	r3, err := updater.Recompute(ctx, 3)
	if err != nil {
		t.Fatalf("recompute 3: %v", err)
	}
	if r3.Rank != 2 || r3.TotalScore != 90 {
		t.Fatalf("expected user 3 at rank 2 with 90, got %+v", r3)
	}

	// User 2 has not submitted again; their stored rank stays stale.
	r2, _ = updater.Rank(ctx, 2)
	if r2.Rank != 2 {
		t.Fatalf("expected stale rank 2 for user 2, got %d", r2.Rank)
	}

	r2, _ = updater.Recompute(ctx, 2)
	if r2.Rank != 3 {
		t.Fatalf("expected recompute to move user 2 to rank 3, got %d", r2.Rank)
	}
}

func TestRecomputeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	log, _ := logtest.NewNullLogger()
	store := memory.NewStore()
	updater := app.NewLeaderboardUpdater(store, nil, log)

	submit(t, store, 1, 40)
	submit(t, store, 1, 60)
	submit(t, store, 2, 100)

	first, _ := updater.Recompute(ctx, 1)
	second, _ := updater.Recompute(ctx, 1)
	if first.Rank != second.Rank || first.TotalScore != second.TotalScore {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
	// Ties share the rank.
	if first.Rank != 1 || first.TotalScore != 100 {
		t.Fatalf("expected tie at rank 1 with 100, got %+v", first)
	}

	top, err := updater.Top(ctx, 0)
	if err != nil {
		t.Fatalf("top: %v", err)
	}
	if len(top) != 1 {
		t.Fatalf("expected one stored rank, got %d", len(top))
	}
}

func TestRecomputePublishesToFeed(t *testing.T) {
	ctx := context.Background()
	log, _ := logtest.NewNullLogger()
	store := memory.NewStore()
	feed := app.NewRankFeed()
	updater := app.NewLeaderboardUpdater(store, feed, log)

	ch, cancel := feed.Subscribe(5)
	defer cancel()

	submit(t, store, 5, 10)
	if _, err := updater.Recompute(ctx, 5); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	select {
	case rank := <-ch:
		if rank.UserID != 5 || rank.Rank != 1 {
			t.Fatalf("unexpected rank update %+v", rank)
		}
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting for rank update")
	}
}

func TestEnqueueAllSchedulesEveryUser(t *testing.T) {
	ctx := context.Background()
	log, _ := logtest.NewNullLogger()
	store := memory.NewStore()
	queue := memory.NewQueue(8)
	updater := app.NewLeaderboardUpdater(store, nil, log)

	submit(t, store, 1, 1)
	submit(t, store, 2, 2)
	submit(t, store, 2, 3)

	n, err := updater.EnqueueAll(ctx, queue)
	if err != nil {
		t.Fatalf("enqueue all: %v", err)
	}
	if n != 2 || queue.Pending() != 2 {
		t.Fatalf("expected 2 jobs, got n=%d pending=%d", n, queue.Pending())
	}
}

func TestRecomputeAllRefreshesStaleRanks(t *testing.T) {
	ctx := context.Background()
	log, _ := logtest.NewNullLogger()
	store := memory.NewStore()
	updater := app.NewLeaderboardUpdater(store, nil, log)

	submit(t, store, 1, 100)
	submit(t, store, 2, 80)
	_, _ = updater.Recompute(ctx, 2)
	submit(t, store, 3, 90)

	n, err := updater.RecomputeAll(ctx)
	if err != nil {
		t.Fatalf("recompute all: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 users, got %d", n)
	}
	want := map[int64]int{1: 1, 3: 2, 2: 3}
	for id, rank := range want {
		got, err := updater.Rank(ctx, id)
		if err != nil {
			t.Fatalf("rank %d: %v", id, err)
		}
		if got.Rank != rank {
			t.Fatalf("expected user %d at rank %d, got %d", id, rank, got.Rank)
		}
	}
}
