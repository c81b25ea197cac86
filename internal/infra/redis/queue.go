package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"quiz-attempt-service/internal/domain"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultQueueKey  = "leaderboard:jobs"
	processingSuffix = ":processing"
)

// Queue is a reliable list queue for rank jobs.
//
// Enqueue pushes to the head of key. Dequeue moves the tail element into
// key:processing atomically, and Ack removes it from there. Jobs left in the
// processing list by a crashed worker are pushed back by Recover.
type Queue struct {
	client     *redis.Client
	key        string
	processing string
	// poll bounds each blocking pop so ctx cancellation is noticed. Redis
	// timeouts have one second granularity.
	poll time.Duration
}

func NewQueue(client *redis.Client, key string) *Queue {
	if key == "" {
		key = DefaultQueueKey
	}
	return &Queue{
		client:     client,
		key:        key,
		processing: key + processingSuffix,
		poll:       time.Second,
	}
}

func (q *Queue) Enqueue(ctx context.Context, job domain.RankJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.key, payload).Err()
}

func (q *Queue) Dequeue(ctx context.Context) (domain.RankJob, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.RankJob{}, err
		}
		raw, err := q.client.BRPopLPush(ctx, q.key, q.processing, q.poll).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return domain.RankJob{}, ctx.Err()
			}
			return domain.RankJob{}, err
		}
		var job domain.RankJob
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			// Poison message: drop it so it is not redelivered forever.
			_ = q.client.LRem(ctx, q.processing, 1, raw).Err()
			return domain.RankJob{}, err
		}
		job.Raw = raw
		return job, nil
	}
}

func (q *Queue) Ack(ctx context.Context, job domain.RankJob) error {
	raw := job.Raw
	if raw == "" {
		payload, err := json.Marshal(job)
		if err != nil {
			return err
		}
		raw = string(payload)
	}
	return q.client.LRem(ctx, q.processing, 1, raw).Err()
}

// Recover moves every job from the processing list back to the queue and
// reports how many were moved. Call it once before starting workers.
func (q *Queue) Recover(ctx context.Context) (int, error) {
	n := 0
	for {
		err := q.client.RPopLPush(ctx, q.processing, q.key).Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

// Len reports how many jobs wait in the queue.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}
