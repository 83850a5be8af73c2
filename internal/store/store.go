package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/bobarin/shortreel/internal/models"
	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown job ids.
var ErrNotFound = errors.New("job not found")

// UpdateFunc mutates a private copy of a job. Returning an error discards the
// change.
type UpdateFunc func(job *models.Job) error

// Store is the job registry. Implementations apply Update atomically and
// hand out copies, so a reader never sees a half-written record.
type Store interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, state *models.JobState) ([]*models.Job, error)
	Update(ctx context.Context, id uuid.UUID, fn UpdateFunc) (*models.Job, error)
}

// Memory is the default in-process Store.
type Memory struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.Job
}

func NewMemory() *Memory {
	return &Memory{jobs: make(map[uuid.UUID]*models.Job)}
}

func (m *Memory) Create(_ context.Context, job *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	now := time.Now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

// List returns jobs newest first, optionally filtered by state.
func (m *Memory) List(_ context.Context, state *models.JobState) ([]*models.Job, error) {
	m.mu.RLock()
	out := make([]*models.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if state != nil && job.State != *state {
			continue
		}
		out = append(out, job.Clone())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) Update(_ context.Context, id uuid.UUID, fn UpdateFunc) (*models.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = time.Now()
	m.jobs[id] = next
	return next.Clone(), nil
}
