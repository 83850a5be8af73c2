package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/bobarin/shortreel/internal/models"
	"github.com/bobarin/shortreel/internal/pipeline"
	"github.com/bobarin/shortreel/internal/storage"
	"github.com/bobarin/shortreel/internal/store"
	"github.com/google/uuid"
)

// Progress checkpoints reported while a job runs.
const (
	ProgressStarted  = 10
	ProgressSpeech   = 33
	ProgressImages   = 66
	ProgressConcat   = 90
	ProgressComplete = 100
)

const (
	defaultPollInterval = 250 * time.Millisecond
	finalWriteTimeout   = 10 * time.Second
)

// errTerminal rejects writes against a job that already finished.
var errTerminal = errors.New("job already finished")

// errNotPending means another consumer claimed the job first.
var errNotPending = errors.New("job is not pending")

// Runner hands a stored job to whatever executes it.
type Runner interface {
	Dispatch(ctx context.Context, id uuid.UUID) error
}

type Options struct {
	Store     store.Store
	Speech    *pipeline.SpeechStage
	Images    *pipeline.ImageStage
	Composer  *pipeline.Composer
	Publisher storage.Publisher

	TempDir       string
	MusicPath     string // empty disables background music
	DefaultVoice  string
	DefaultMethod models.ImageGenerationMethod
	PollInterval  time.Duration // Await polling; defaults to 250ms
}

// Worker coordinates a job through speech, images, composition and
// publication. It is the only writer of job records.
type Worker struct {
	store     store.Store
	speech    *pipeline.SpeechStage
	images    *pipeline.ImageStage
	composer  *pipeline.Composer
	publisher storage.Publisher
	runner    Runner

	tempDir       string
	musicPath     string
	defaultVoice  string
	defaultMethod models.ImageGenerationMethod
	pollInterval  time.Duration
}

func New(opts Options) *Worker {
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	tempDir := opts.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "shortreel")
	}
	return &Worker{
		store:         opts.Store,
		speech:        opts.Speech,
		images:        opts.Images,
		composer:      opts.Composer,
		publisher:     opts.Publisher,
		tempDir:       tempDir,
		musicPath:     opts.MusicPath,
		defaultVoice:  opts.DefaultVoice,
		defaultMethod: opts.DefaultMethod,
		pollInterval:  poll,
	}
}

// SetRunner must be called before Submit.
func (w *Worker) SetRunner(r Runner) {
	w.runner = r
}

// Submit validates the request, stores a pending job and dispatches it. It
// does not wait for the render.
func (w *Worker) Submit(ctx context.Context, scenes []models.Scene, settings models.RenderSettings) (uuid.UUID, error) {
	if err := models.ValidateScenes(scenes); err != nil {
		return uuid.Nil, err
	}
	settings = settings.WithDefaults(w.defaultVoice, w.defaultMethod)
	if err := settings.Validate(); err != nil {
		return uuid.Nil, err
	}
	if w.runner == nil {
		return uuid.Nil, fmt.Errorf("no runner configured")
	}

	now := time.Now().UTC()
	job := &models.Job{
		ID:        uuid.New(),
		Scenes:    scenes,
		Settings:  settings,
		State:     models.JobStatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := w.store.Create(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to create job: %w", err)
	}

	if err := w.runner.Dispatch(ctx, job.ID); err != nil {
		w.fail(ctx, job.ID, fmt.Errorf("failed to dispatch job: %w", err))
		return job.ID, fmt.Errorf("failed to dispatch job: %w", err)
	}

	log.Printf("[Coordinator] job %s: submitted (%d scenes, %s images)", job.ID, len(scenes), settings.ImageGenerationMethod)
	return job.ID, nil
}

// Run executes a pending job to a terminal state. Pipeline failures are
// recorded on the job and do not surface as an error; only store problems
// do. Running a job that is no longer pending is a no-op.
func (w *Worker) Run(ctx context.Context, id uuid.UUID) error {
	job, err := w.store.Update(ctx, id, func(j *models.Job) error {
		if j.State != models.JobStatePending {
			return errNotPending
		}
		now := time.Now().UTC()
		j.State = models.JobStateProcessing
		j.Progress = ProgressStarted
		j.StartedAt = &now
		return nil
	})
	if errors.Is(err, errNotPending) {
		log.Printf("[Coordinator] job %s: not pending, skipping", id)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to claim job %s: %w", id, err)
	}

	log.Printf("[Coordinator] job %s: processing", id)

	ws, err := pipeline.NewWorkspace(w.tempDir, id)
	if err != nil {
		w.fail(ctx, id, err)
		return nil
	}

	if err := w.process(ctx, ws, job); err != nil {
		ws.Cleanup()
		log.Printf("[Coordinator] job %s: failed: %v", id, err)
		w.fail(ctx, id, err)
	}
	return nil
}

func (w *Worker) process(ctx context.Context, ws *pipeline.Workspace, job *models.Job) error {
	id := job.ID
	settings := job.Settings

	audio, err := w.speech.Synthesize(ctx, ws, job.Scenes, settings)
	if err != nil {
		return err
	}
	w.advance(ctx, id, ProgressSpeech, nil)
	if err := checkCancelled(ctx); err != nil {
		return err
	}

	images, err := w.images.Synthesize(ctx, ws, job.Scenes, settings)
	if err != nil {
		return err
	}
	var (
		degraded []int
		warnings []string
	)
	for _, img := range images {
		if !img.Fallback {
			continue
		}
		degraded = append(degraded, img.SceneIndex)
		warnings = append(warnings, fmt.Sprintf("scene %d: %s image unavailable, used placeholder: %s",
			img.SceneIndex+1, settings.ImageGenerationMethod, img.FallbackReason))
	}
	w.advance(ctx, id, ProgressImages, func(j *models.Job) {
		j.DegradedScenes = degraded
		j.Warnings = append(j.Warnings, warnings...)
	})
	if err := checkCancelled(ctx); err != nil {
		return err
	}

	clips, err := w.composer.ComposeAll(ctx, ws, images, audio, settings)
	if err != nil {
		return err
	}
	if err := checkCancelled(ctx); err != nil {
		return err
	}
	final, err := w.composer.Concatenate(ctx, ws, clips)
	if err != nil {
		return err
	}
	w.advance(ctx, id, ProgressConcat, nil)

	if settings.BackgroundMusic {
		if warning := w.mixMusic(ctx, ws, final, settings.MusicVolume); warning != "" {
			log.Printf("[Coordinator] job %s: %s", id, warning)
			w.advance(ctx, id, 0, func(j *models.Job) {
				j.Warnings = append(j.Warnings, warning)
			})
		}
	}
	if err := checkCancelled(ctx); err != nil {
		return err
	}

	// Intermediates go before the video becomes reachable.
	ws.Cleanup(final)

	name := filepath.Base(final)
	location, err := w.publisher.Publish(ctx, final, name)
	if err != nil {
		return fmt.Errorf("failed to publish video: %w", err)
	}
	ws.Cleanup()

	err = w.finalWrite(ctx, id, func(j *models.Job) error {
		if !j.State.CanTransition(models.JobStateCompleted) {
			return errTerminal
		}
		now := time.Now().UTC()
		j.State = models.JobStateCompleted
		j.Progress = ProgressComplete
		j.OutputName = &name
		j.OutputLocation = &location
		j.FinishedAt = &now
		return nil
	})
	if err != nil {
		log.Printf("[Coordinator] job %s: failed to mark completed: %v", id, err)
		return nil
	}

	log.Printf("[Coordinator] job %s: completed -> %s", id, location)
	return nil
}

// mixMusic returns a warning when the mix could not be applied; the unmixed
// video stays in place in that case.
func (w *Worker) mixMusic(ctx context.Context, ws *pipeline.Workspace, video string, volume float64) string {
	if w.musicPath == "" {
		return "background music requested but no track is configured"
	}
	if _, err := os.Stat(w.musicPath); err != nil {
		return fmt.Sprintf("background music track unavailable: %v", err)
	}
	if err := w.composer.MixBackgroundAudio(ctx, ws, video, w.musicPath, volume); err != nil {
		return fmt.Sprintf("background music mix failed, using video without music: %v", err)
	}
	return ""
}

// advance raises progress (never lowers it) and applies mutate. Store errors
// are logged; the render carries on.
func (w *Worker) advance(ctx context.Context, id uuid.UUID, progress int, mutate func(*models.Job)) {
	_, err := w.store.Update(ctx, id, func(j *models.Job) error {
		if j.State.IsTerminal() {
			return errTerminal
		}
		if progress > j.Progress {
			j.Progress = progress
		}
		if mutate != nil {
			mutate(j)
		}
		return nil
	})
	if err != nil {
		log.Printf("[Coordinator] job %s: progress update to %d ignored: %v", id, progress, err)
	}
}

// fail records cause on the job.
func (w *Worker) fail(ctx context.Context, id uuid.UUID, cause error) {
	msg := cause.Error()
	err := w.finalWrite(ctx, id, func(j *models.Job) error {
		if !j.State.CanTransition(models.JobStateFailed) {
			return errTerminal
		}
		now := time.Now().UTC()
		j.State = models.JobStateFailed
		j.Error = &msg
		j.FinishedAt = &now
		return nil
	})
	if err != nil {
		log.Printf("[Coordinator] job %s: failed to record failure: %v", id, err)
	}
}

func (w *Worker) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return w.store.Get(ctx, id)
}

func (w *Worker) Status(ctx context.Context, id uuid.UUID) (models.JobStatus, error) {
	job, err := w.store.Get(ctx, id)
	if err != nil {
		return models.JobStatus{}, err
	}
	return job.Status(), nil
}

// List returns jobs newest first, optionally filtered by state.
func (w *Worker) List(ctx context.Context, state *models.JobState) ([]*models.Job, error) {
	return w.store.List(ctx, state)
}

// Await polls until the job reaches a terminal state or ctx ends.
func (w *Worker) Await(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		job, err := w.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.State.IsTerminal() {
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

func checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("job cancelled: %w", err)
	}
	return nil
}

// finalWrite applies a terminal transition even when ctx is already
// cancelled, so shutdowns leave no job stuck in processing.
func (w *Worker) finalWrite(ctx context.Context, id uuid.UUID, fn store.UpdateFunc) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()
	_, err := w.store.Update(wctx, id, fn)
	return err
}
