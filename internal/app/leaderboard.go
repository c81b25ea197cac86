package app

import (
	"context"
	"time"

	"quiz-attempt-service/internal/domain"

	"github.com/sirupsen/logrus"
)

// DefaultLeaderboardLimit caps Top when the caller passes no limit.
const DefaultLeaderboardLimit = 50

// LeaderboardUpdater recomputes one user's rank at a time.
//
// Only the acting user's row is rewritten. Other users' stored ranks can go
// stale until their own next submission (or a reconciliation sweep); shifts
// are not propagated.
type LeaderboardUpdater struct {
	store Store
	feed  *RankFeed
	log   logrus.FieldLogger
	now   func() time.Time
}

func NewLeaderboardUpdater(store Store, feed *RankFeed, log logrus.FieldLogger) *LeaderboardUpdater {
	return &LeaderboardUpdater{store: store, feed: feed, log: log, now: time.Now}
}

// Recompute sums the user's submissions, ranks them as 1 + the number of users
// with a strictly greater sum, and upserts the UserRank row. It is a pure
// recomputation, so running it twice is harmless.
func (u *LeaderboardUpdater) Recompute(ctx context.Context, userID int64) (domain.UserRank, error) {
	var rank domain.UserRank
	err := u.store.InTx(ctx, func(ctx context.Context, tx Store) error {
		total, err := tx.Submissions().TotalScore(ctx, userID)
		if err != nil {
			return err
		}
		above, err := tx.Submissions().CountUsersAbove(ctx, total)
		if err != nil {
			return err
		}
		rank = domain.UserRank{
			UserID:     userID,
			Rank:       above + 1,
			TotalScore: total,
			UpdatedAt:  u.now().UTC(),
		}
		return tx.Ranks().Upsert(ctx, rank)
	})
	if err != nil {
		return domain.UserRank{}, err
	}

	u.log.WithFields(logrus.Fields{"user_id": userID, "rank": rank.Rank, "total_score": rank.TotalScore}).Info("updated leaderboard")
	if u.feed != nil {
		u.feed.Publish(rank)
	}
	return rank, nil
}

// Rank returns the stored rank for userID.
func (u *LeaderboardUpdater) Rank(ctx context.Context, userID int64) (domain.UserRank, error) {
	return u.store.Ranks().Get(ctx, userID)
}

// Top lists stored ranks by total score, highest first.
func (u *LeaderboardUpdater) Top(ctx context.Context, limit int) ([]domain.UserRank, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	return u.store.Ranks().Top(ctx, limit)
}

// EnqueueAll schedules a recomputation for every user with submissions. It is
// the reconciliation path that bounds staleness for inactive users.
func (u *LeaderboardUpdater) EnqueueAll(ctx context.Context, queue RankJobQueue) (int, error) {
	userIDs, err := u.store.Submissions().ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range userIDs {
		if err := queue.Enqueue(ctx, NewRankJob(id, u.now())); err != nil {
			return i, err
		}
	}
	return len(userIDs), nil
}

// RecomputeAll recomputes every user inline, without a queue. Ranks are read
// fresh per user, so the result matches a full rebuild.
func (u *LeaderboardUpdater) RecomputeAll(ctx context.Context) (int, error) {
	userIDs, err := u.store.Submissions().ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}
	for i, id := range userIDs {
		if _, err := u.Recompute(ctx, id); err != nil {
			return i, err
		}
	}
	return len(userIDs), nil
}
