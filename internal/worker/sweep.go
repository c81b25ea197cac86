package worker

import (
	"context"
	"time"

	"quiz-attempt-service/internal/app"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Enqueuer is satisfied by *app.LeaderboardUpdater.
type Enqueuer interface {
	EnqueueAll(ctx context.Context, queue app.RankJobQueue) (int, error)
}

// Sweep periodically schedules a rank recomputation for every user, which
// bounds how long an inactive user's stored rank can stay stale.
type Sweep struct {
	cron     *cron.Cron
	schedule string
	updater  Enqueuer
	queue    app.RankJobQueue
	log      logrus.FieldLogger
}

// NewSweep validates schedule (standard five-field cron or a descriptor such
// as "@hourly").
func NewSweep(schedule string, updater Enqueuer, queue app.RankJobQueue, log logrus.FieldLogger) (*Sweep, error) {
	cronLog := cron.VerbosePrintfLogger(log.WithField("component", "cron"))
	s := &Sweep{
		cron: cron.New(
			cron.WithLogger(cronLog),
			cron.WithChain(cron.SkipIfStillRunning(cronLog)),
		),
		schedule: schedule,
		updater:  updater,
		queue:    queue,
		log:      log,
	}
	if _, err := s.cron.AddFunc(schedule, s.runOnce); err != nil {
		return nil, err
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done.
func (s *Sweep) Run(ctx context.Context) error {
	s.log.WithField("schedule", s.schedule).Info("reconcile sweep started")
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

func (s *Sweep) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()
	if _, err := Reconcile(ctx, s.updater, s.queue, s.log); err != nil {
		s.log.WithError(err).Error("reconcile sweep")
	}
}

// Reconcile enqueues one rank job per user with submissions.
func Reconcile(ctx context.Context, updater Enqueuer, queue app.RankJobQueue, log logrus.FieldLogger) (int, error) {
	n, err := updater.EnqueueAll(ctx, queue)
	if err != nil {
		return n, err
	}
	log.WithField("jobs", n).Info("reconcile enqueued rank jobs")
	return n, nil
}
