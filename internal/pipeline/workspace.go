package pipeline

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
)

// Workspace is the per-job scratch directory. Every file a stage writes is
// registered here and Cleanup removes exactly those files.
type Workspace struct {
	jobID      uuid.UUID
	dir        string
	createdDir bool

	mu    sync.Mutex
	owned map[string]struct{}
}

// NewWorkspace creates root/<jobID>. Paths handed out are absolute even
// when root is relative.
func NewWorkspace(root string, jobID uuid.UUID) (*Workspace, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	dir := filepath.Join(absRoot, jobID.String())

	created := false
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		created = true
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create job workspace: %w", err)
	}

	return &Workspace{
		jobID:      jobID,
		dir:        dir,
		createdDir: created,
		owned:      make(map[string]struct{}),
	}, nil
}

func (w *Workspace) JobID() uuid.UUID { return w.jobID }

func (w *Workspace) Dir() string { return w.dir }

// NewPath returns a fresh, registered file path. sceneIndex < 0 omits the
// scene part of the name.
func (w *Workspace) NewPath(kind string, sceneIndex int, ext string) string {
	suffix := uuid.NewString()[:8]
	var name string
	if sceneIndex >= 0 {
		name = fmt.Sprintf("%s_%03d_%s%s", kind, sceneIndex, suffix, ext)
	} else {
		name = fmt.Sprintf("%s_%s%s", kind, suffix, ext)
	}
	p := filepath.Join(w.dir, name)
	w.register(p)
	return p
}

// OutputPath returns the registered path of the final video,
// video_<uuid>.mp4.
func (w *Workspace) OutputPath() string {
	p := filepath.Join(w.dir, fmt.Sprintf("video_%s.mp4", uuid.NewString()))
	w.register(p)
	return p
}

func (w *Workspace) register(p string) {
	w.mu.Lock()
	w.owned[p] = struct{}{}
	w.mu.Unlock()
}

// Owns reports whether p was handed out by this workspace.
func (w *Workspace) Owns(p string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.owned[p]
	return ok
}

// Cleanup deletes every registered file except keep. Failures are logged
// and never returned. Safe to call any number of times.
func (w *Workspace) Cleanup(keep ...string) {
	skip := make(map[string]struct{}, len(keep))
	for _, k := range keep {
		skip[k] = struct{}{}
	}

	w.mu.Lock()
	var remove []string
	for p := range w.owned {
		if _, ok := skip[p]; ok {
			continue
		}
		remove = append(remove, p)
		delete(w.owned, p)
	}
	empty := len(w.owned) == 0
	w.mu.Unlock()

	for _, p := range remove {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Printf("[Workspace] job %s: failed to remove %s: %v", w.jobID, filepath.Base(p), err)
		}
	}

	if empty && w.createdDir {
		// Only succeeds when nothing foreign was left in the directory.
		if err := os.Remove(w.dir); err != nil && !os.IsNotExist(err) {
			log.Printf("[Workspace] job %s: workspace dir kept: %v", w.jobID, err)
		}
	}
}
