package worker

import (
	"context"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = time.Second
)

// Recomputer is satisfied by *app.LeaderboardUpdater.
type Recomputer interface {
	Recompute(ctx context.Context, userID int64) (domain.UserRank, error)
}

type Options struct {
	MaxRetries     uint64
	InitialBackoff time.Duration
}

// Worker consumes rank jobs and runs the leaderboard recomputation for each.
type Worker struct {
	queue   app.RankJobQueue
	updater Recomputer
	opts    Options
	log     logrus.FieldLogger
}

func New(queue app.RankJobQueue, updater Recomputer, opts Options, log logrus.FieldLogger) *Worker {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	return &Worker{queue: queue, updater: updater, opts: opts, log: log}
}

// Run processes jobs until ctx is cancelled. Dequeue errors are logged and
// retried after InitialBackoff.
func (w *Worker) Run(ctx context.Context) error {
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.WithError(err).Warn("dequeue rank job")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.opts.InitialBackoff):
			}
			continue
		}
		w.Handle(ctx, job)
	}
}

// Handle runs one job with retries and always acknowledges it. A job that
// still fails after the last retry is logged and dropped; the stale rank is
// fixed by the user's next submission or a reconcile.
func (w *Worker) Handle(ctx context.Context, job domain.RankJob) {
	entry := w.log.WithFields(logrus.Fields{"job_id": job.ID, "user_id": job.UserID})

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = w.opts.InitialBackoff
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, w.opts.MaxRetries), ctx)

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		_, err := w.updater.Recompute(ctx, job.UserID)
		return err
	}, policy, func(err error, next time.Duration) {
		entry.WithError(err).WithField("retry_in", next.String()).Warn("rank recompute failed, retrying")
	})
	if err != nil {
		entry.WithError(err).WithField("attempts", attempt).Error("rank recompute gave up")
	}

	if err := w.queue.Ack(context.WithoutCancel(ctx), job); err != nil {
		entry.WithError(err).Warn("ack rank job")
	}
}
