package memory

import (
	"context"
	"errors"
	"sync"

	"quiz-attempt-service/internal/domain"
)

// ErrQueueFull is returned by Enqueue when the buffer has no room.
var ErrQueueFull = errors.New("rank job queue full")

// Queue is an in-process app.RankJobQueue. Unacked jobs are tracked so tests
// can assert on them; they are not redelivered across process restarts.
type Queue struct {
	jobs chan domain.RankJob

	mu       sync.Mutex
	inFlight map[string]domain.RankJob
	acked    int
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 1024
	}
	return &Queue{
		jobs:     make(chan domain.RankJob, size),
		inFlight: make(map[string]domain.RankJob),
	}
}

// Enqueue never blocks: a full buffer fails with ErrQueueFull so callers on
// the request path are not held behind the consumer.
func (q *Queue) Enqueue(ctx context.Context, job domain.RankJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *Queue) Dequeue(ctx context.Context) (domain.RankJob, error) {
	select {
	case job := <-q.jobs:
		q.mu.Lock()
		q.inFlight[job.ID] = job
		q.mu.Unlock()
		return job, nil
	case <-ctx.Done():
		return domain.RankJob{}, ctx.Err()
	}
}

func (q *Queue) Ack(_ context.Context, job domain.RankJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, job.ID)
	q.acked++
	return nil
}

// Pending reports how many jobs wait to be dequeued.
func (q *Queue) Pending() int { return len(q.jobs) }

// Acked reports how many jobs were acknowledged.
func (q *Queue) Acked() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.acked
}
