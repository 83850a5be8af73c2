package worker

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/bobarin/shortreel/internal/queue"
	"github.com/bobarin/shortreel/internal/store"
	"github.com/google/uuid"
)

// HandlerFunc runs one job; Worker.Run satisfies it.
type HandlerFunc func(ctx context.Context, id uuid.UUID) error

// InProcessRunner starts one goroutine per job. Jobs run under base, not under
// the context of the request that submitted them.
type InProcessRunner struct {
	base   context.Context
	handle HandlerFunc
	wg     sync.WaitGroup
}

func NewInProcessRunner(base context.Context, handle HandlerFunc) *InProcessRunner {
	return &InProcessRunner{base: base, handle: handle}
}

func (r *InProcessRunner) Dispatch(_ context.Context, id uuid.UUID) error {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.handle(r.base, id); err != nil {
			log.Printf("[Runner] job %s: %v", id, err)
		}
	}()
	return nil
}

// Wait blocks until every dispatched job returned.
func (r *InProcessRunner) Wait() {
	r.wg.Wait()
}

// JobQueue is the part of queue.Queue the runner needs.
type JobQueue interface {
	Enqueue(ctx context.Context, job *queue.Job) error
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
}

// QueueRunner pushes job ids onto a shared queue and consumes them with a
// fixed number of goroutines, possibly in another process.
type QueueRunner struct {
	q           JobQueue
	handle      HandlerFunc
	pollTimeout time.Duration
	retryDelay  time.Duration
}

func NewQueueRunner(q JobQueue, handle HandlerFunc) *QueueRunner {
	return &QueueRunner{
		q:           q,
		handle:      handle,
		pollTimeout: 5 * time.Second,
		retryDelay:  time.Second,
	}
}

func (r *QueueRunner) Dispatch(ctx context.Context, id uuid.UUID) error {
	return r.q.Enqueue(ctx, &queue.Job{ID: id})
}

// Start runs concurrency consumers and blocks until ctx is done and all of
// them returned.
func (r *QueueRunner) Start(ctx context.Context, concurrency int) {
	if concurrency < 1 {
		concurrency = 1
	}
	log.Printf("Worker started with concurrency: %d", concurrency)

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.processQueue(ctx)
		}()
	}

	<-ctx.Done()
	log.Println("Worker shutting down...")
	wg.Wait()
}

func (r *QueueRunner) processQueue(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := r.q.Dequeue(ctx, r.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Error dequeuing render job: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.retryDelay):
			}
			continue
		}
		if job == nil {
			continue
		}

		log.Printf("Processing render job %s (attempt %d)", job.ID, job.Attempt+1)

		err = r.handle(ctx, job.ID)
		if err == nil {
			continue
		}
		log.Printf("Render job %s failed: %v", job.ID, err)

		// Store hiccups get one more delivery. Pipeline failures never reach
		// here; they end as failed jobs.
		if job.Attempt >= queue.MaxAttempts-1 || errors.Is(err, store.ErrNotFound) || ctx.Err() != nil {
			continue
		}
		if err := r.q.Enqueue(ctx, job.Redelivery()); err != nil {
			log.Printf("Failed to re-enqueue render job %s: %v", job.ID, err)
		}
	}
}
