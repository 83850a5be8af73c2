package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bobarin/shortreel/internal/models"
	"github.com/bobarin/shortreel/internal/store"
	"github.com/google/uuid"
)

var _ store.Store = (*DB)(nil)

const jobColumns = `
	id, scenes, settings, status, progress, output_name, output_location,
	error_message, degraded_scenes, warnings, created_at, updated_at,
	started_at, finished_at
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job                         models.Job
		scenes, settings            models.JSONB
		degraded, warnings          models.JSONB
		outName, outLocation, errMs sql.NullString
		startedAt, finishedAt       sql.NullTime
	)

	err := row.Scan(
		&job.ID, &scenes, &settings, &job.State, &job.Progress,
		&outName, &outLocation, &errMs, &degraded, &warnings,
		&job.CreatedAt, &job.UpdatedAt, &startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(scenes, &job.Scenes); err != nil {
		return nil, fmt.Errorf("failed to decode scenes: %w", err)
	}
	if err := json.Unmarshal(settings, &job.Settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	if len(degraded) > 0 {
		if err := json.Unmarshal(degraded, &job.DegradedScenes); err != nil {
			return nil, fmt.Errorf("failed to decode degraded scenes: %w", err)
		}
	}
	if len(warnings) > 0 {
		if err := json.Unmarshal(warnings, &job.Warnings); err != nil {
			return nil, fmt.Errorf("failed to decode warnings: %w", err)
		}
	}

	job.OutputName = nullString(outName)
	job.OutputLocation = nullString(outLocation)
	job.Error = nullString(errMs)
	job.StartedAt = nullTime(startedAt)
	job.FinishedAt = nullTime(finishedAt)

	return &job, nil
}

func (db *DB) Create(ctx context.Context, job *models.Job) error {
	scenes, err := json.Marshal(job.Scenes)
	if err != nil {
		return fmt.Errorf("failed to encode scenes: %w", err)
	}
	settings, err := json.Marshal(job.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	query := `
		INSERT INTO render_jobs (id, scenes, settings, status, progress)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	return db.QueryRowContext(
		ctx, query,
		job.ID, models.JSONB(scenes), models.JSONB(settings), job.State, job.Progress,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
}

func (db *DB) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM render_jobs WHERE id = $1`

	job, err := scanJob(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// List returns jobs newest first, optionally filtered by state.
func (db *DB) List(ctx context.Context, state *models.JobState) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM render_jobs`
	var args []interface{}
	if state != nil {
		query += ` WHERE status = $1`
		args = append(args, *state)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Update locks the row, applies fn to the loaded job and writes the mutable
// columns back in the same transaction.
func (db *DB) Update(ctx context.Context, id uuid.UUID, fn store.UpdateFunc) (*models.Job, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + jobColumns + ` FROM render_jobs WHERE id = $1 FOR UPDATE`
	job, err := scanJob(tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock job: %w", err)
	}

	if err := fn(job); err != nil {
		return nil, err
	}

	degraded, err := json.Marshal(job.DegradedScenes)
	if err != nil {
		return nil, fmt.Errorf("failed to encode degraded scenes: %w", err)
	}
	warnings, err := json.Marshal(job.Warnings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode warnings: %w", err)
	}

	job.UpdatedAt = time.Now()
	update := `
		UPDATE render_jobs
		SET status = $1, progress = $2, output_name = $3, output_location = $4,
			error_message = $5, degraded_scenes = $6, warnings = $7,
			updated_at = $8, started_at = $9, finished_at = $10
		WHERE id = $11
	`
	_, err = tx.ExecContext(
		ctx, update,
		job.State, job.Progress, job.OutputName, job.OutputLocation,
		job.Error, models.JSONB(degraded), models.JSONB(warnings),
		job.UpdatedAt, job.StartedAt, job.FinishedAt, job.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update job: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit job update: %w", err)
	}
	return job, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
