package app

import (
	"sync"

	"quiz-attempt-service/internal/domain"
)

// RankFeed fans out recomputed ranks to subscribers of the affected user.
type RankFeed struct {
	mu          sync.Mutex
	subscribers map[int64]map[chan domain.UserRank]struct{}
}

func NewRankFeed() *RankFeed {
	return &RankFeed{subscribers: make(map[int64]map[chan domain.UserRank]struct{})}
}

// Subscribe returns a channel of rank updates for userID.
// The caller must invoke the returned cancel function to avoid leaks.
func (f *RankFeed) Subscribe(userID int64) (<-chan domain.UserRank, func()) {
	ch := make(chan domain.UserRank, 4)

	f.mu.Lock()
	subs, ok := f.subscribers[userID]
	if !ok {
		subs = make(map[chan domain.UserRank]struct{})
		f.subscribers[userID] = subs
	}
	subs[ch] = struct{}{}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		subs, ok := f.subscribers[userID]
		if !ok {
			return
		}
		if _, ok := subs[ch]; ok {
			delete(subs, ch)
			close(ch)
		}
		if len(subs) == 0 {
			delete(f.subscribers, userID)
		}
	}
	return ch, cancel
}

// Publish delivers rank to every subscriber of rank.UserID without blocking.
func (f *RankFeed) Publish(rank domain.UserRank) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers[rank.UserID] {
		select {
		case ch <- rank:
		default:
			// Slow reader: drop the oldest update, keep the newest.
			select {
			case <-ch:
			default:
			}
			ch <- rank
		}
	}
}

// Subscribers reports how many channels listen for userID.
func (f *RankFeed) Subscribers(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers[userID])
}
