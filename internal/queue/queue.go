// Package queue carries render job ids over a Redis list. Producers RPUSH,
// consumers BLPOP, so each envelope is delivered to exactly one consumer.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	QueueRenderJobs = "queue:render_jobs"

	// MaxAttempts bounds deliveries of one envelope.
	MaxAttempts = 2
)

// Job is the envelope pushed onto the list. The job record itself lives in
// the store; consumers load it by ID.
type Job struct {
	ID        uuid.UUID `json:"id"`
	Attempt   int       `json:"attempt"`
	CreatedAt time.Time `json:"created_at"`
}

// Redelivery returns the envelope for the next attempt of the same job.
func (j *Job) Redelivery() *Job {
	return &Job{ID: j.ID, Attempt: j.Attempt + 1}
}

type Queue struct {
	client *redis.Client
	name   string
}

// New connects to redisURL and fails fast when the server does not answer.
func New(redisURL string) (*Queue, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Queue{client: client, name: QueueRenderJobs}, nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}

func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, q.name, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// Dequeue blocks up to timeout. A nil job with a nil error means the queue
// stayed empty.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, q.name).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	case len(result) != 2:
		return nil, fmt.Errorf("unexpected BLPOP reply of %d elements", len(result))
	}
	return decodeJob(result[1])
}

// Len reports how many envelopes are waiting.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.name).Result()
}

func decodeJob(raw string) (*Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if job.ID == uuid.Nil {
		return nil, fmt.Errorf("job envelope has no id")
	}
	return &job, nil
}
