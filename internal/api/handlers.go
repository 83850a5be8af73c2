package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/bobarin/shortreel/internal/models"
	"github.com/bobarin/shortreel/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// maxRequestBody bounds a submitted script.
const maxRequestBody = 2 << 20

// JobService is the coordinator surface the HTTP layer needs.
type JobService interface {
	Submit(ctx context.Context, scenes []models.Scene, settings models.RenderSettings) (uuid.UUID, error)
	Status(ctx context.Context, id uuid.UUID) (models.JobStatus, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, state *models.JobState) ([]*models.Job, error)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Handler struct {
	jobs         JobService
	pollInterval time.Duration
}

func NewHandler(jobs JobService) *Handler {
	return &Handler{
		jobs:         jobs,
		pollInterval: time.Second,
	}
}

// CreateVideo handles POST /v1/videos
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req models.CreateVideoRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Script) == 0 {
		respondError(w, http.StatusBadRequest, "Script is required")
		return
	}
	script, err := models.ParseScriptJSON(req.Script)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var settings models.RenderSettings
	if req.Settings != nil {
		settings = *req.Settings
	}

	jobID, err := h.jobs.Submit(r.Context(), script.Scenes, settings)
	if err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[API] submit failed: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to start video generation")
		return
	}

	if req.ScriptID != nil {
		log.Printf("[API] job %s created for script %s", jobID, *req.ScriptID)
	}

	respondJSON(w, http.StatusAccepted, models.CreateVideoResponse{
		JobID:  jobID,
		Status: models.JobStatePending,
	})
}

// GetVideo handles GET /v1/videos/{id}
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	status, err := h.jobs.Status(r.Context(), jobID)
	if err != nil {
		respondLookupError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, status)
}

// ListVideos handles GET /v1/videos
// Query params:
//   - state: pending, processing, completed (default), failed, or all
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	var filter *models.JobState
	switch raw := r.URL.Query().Get("state"); raw {
	case "all":
	case "":
		completed := models.JobStateCompleted
		filter = &completed
	default:
		state, err := models.ParseJobState(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid state filter. Allowed: pending, processing, completed, failed, all")
			return
		}
		filter = &state
	}

	jobs, err := h.jobs.List(r.Context(), filter)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list videos")
		return
	}

	videos := make([]models.JobStatus, 0, len(jobs))
	for _, job := range jobs {
		videos = append(videos, job.Status())
	}

	respondJSON(w, http.StatusOK, models.ListVideosResponse{
		Videos: videos,
		Total:  len(videos),
	})
}

// GetVideoDownload handles GET /v1/videos/{id}/download
func (h *Handler) GetVideoDownload(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	job, err := h.jobs.Get(r.Context(), jobID)
	if err != nil {
		respondLookupError(w, err)
		return
	}

	if job.State != models.JobStateCompleted || job.OutputLocation == nil {
		respondError(w, http.StatusNotFound, "Video not ready")
		return
	}

	http.Redirect(w, r, *job.OutputLocation, http.StatusTemporaryRedirect)
}

// StreamVideoStatus handles GET /v1/videos/{id}/ws. It pushes the job status
// whenever state or progress changes and closes after the terminal state.
func (h *Handler) StreamVideoStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid job ID")
		return
	}

	status, err := h.jobs.Status(r.Context(), jobID)
	if err != nil {
		respondLookupError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[API] websocket upgrade failed for job %s: %v", jobID, err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(status); err != nil {
		return
	}

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	prev := status
	for !prev.State.IsTerminal() {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		cur, err := h.jobs.Status(r.Context(), jobID)
		if err != nil {
			continue
		}
		if cur.State != prev.State || cur.Progress != prev.Progress {
			if err := conn.WriteJSON(cur); err != nil {
				return
			}
			prev = cur
		}
	}

	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(prev.State)))
}

func respondLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Job not found")
		return
	}
	respondError(w, http.StatusInternalServerError, "Failed to load job")
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
