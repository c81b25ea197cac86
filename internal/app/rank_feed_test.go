package app_test

import (
	"testing"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

func TestRankFeedKeepsNewestForSlowReader(t *testing.T) {
	feed := app.NewRankFeed()
	ch, cancel := feed.Subscribe(1)

	for i := 1; i <= 10; i++ {
		feed.Publish(domain.UserRank{UserID: 1, Rank: i})
	}
	feed.Publish(domain.UserRank{UserID: 2, Rank: 99})

	var last domain.UserRank
	for len(ch) > 0 {
		last = <-ch
	}
	if last.Rank != 10 {
		t.Fatalf("expected newest rank 10, got %d", last.Rank)
	}

	cancel()
	if feed.Subscribers(1) != 0 {
		t.Fatalf("expected no subscribers after cancel, got %d", feed.Subscribers(1))
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after cancel")
	}
	cancel() // second call is a no-op
}
