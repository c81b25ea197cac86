package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quiz-attempt-service/internal/domain"
)

func TestCacheExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	cache := NewCacheWithClock(clock)

	if err := cache.Set(ctx, "analytics:dashboard:1", domain.DashboardSummary{TotalAttempts: 3}, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got domain.DashboardSummary
	ok, err := cache.Get(ctx, "analytics:dashboard:1", &got)
	if err != nil || !ok {
		t.Fatalf("expected cache hit, ok=%v err=%v", ok, err)
	}
	if got.TotalAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", got.TotalAttempts)
	}

	mu.Lock()
	now = now.Add(2 * time.Minute) // beyond ttl + 10% jitter
	mu.Unlock()

	ok, err = cache.Get(ctx, "analytics:dashboard:1", &got)
	if err != nil || ok {
		t.Fatalf("expected expired entry, ok=%v err=%v", ok, err)
	}
	if cache.Len() != 0 {
		t.Fatalf("expected expired entry to be dropped, len=%d", cache.Len())
	}
}

func TestQueueTracksAcks(t *testing.T) {
	ctx := context.Background()
	q := NewQueue(4)

	if err := q.Enqueue(ctx, domain.RankJob{ID: "j1", UserID: 7}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if q.Pending() != 1 {
		t.Fatalf("expected 1 pending job, got %d", q.Pending())
	}
	job, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if job.UserID != 7 {
		t.Fatalf("expected user 7, got %d", job.UserID)
	}
	if err := q.Ack(ctx, job); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if q.Acked() != 1 {
		t.Fatalf("expected 1 ack, got %d", q.Acked())
	}

	cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(cctx); err == nil {
		t.Fatalf("expected dequeue on empty queue to honour ctx")
	}
}

func TestQueueEnqueueFailsFastWhenFull(t *testing.T) {
	q := NewQueue(1)
	if err := q.Enqueue(context.Background(), domain.RankJob{ID: "a", UserID: 1}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- q.Enqueue(context.Background(), domain.RankJob{ID: "b", UserID: 2}) }()
	select {
	case err := <-done:
		if !errors.Is(err, ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected enqueue on a full queue to return immediately")
	}
	if q.Pending() != 1 {
		t.Fatalf("expected 1 pending job, got %d", q.Pending())
	}
}
