package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bobarin/shortreel/internal/models"
	"github.com/bobarin/shortreel/internal/store"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// fakeJobs keeps jobs in a map and lets tests script state changes.
type fakeJobs struct {
	mu        sync.Mutex
	jobs      map[uuid.UUID]*models.Job
	submitted [][]models.Scene
	settings  []models.RenderSettings
	submitErr error
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: map[uuid.UUID]*models.Job{}}
}

func (f *fakeJobs) Submit(ctx context.Context, scenes []models.Scene, settings models.RenderSettings) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return uuid.Nil, f.submitErr
	}
	if err := settings.WithDefaults("es-ES", models.ImageMethodPlaceholder).Validate(); err != nil {
		return uuid.Nil, err
	}
	f.submitted = append(f.submitted, scenes)
	f.settings = append(f.settings, settings)
	id := uuid.New()
	f.jobs[id] = &models.Job{ID: id, Scenes: scenes, State: models.JobStatePending}
	return id, nil
}

func (f *fakeJobs) Get(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return job.Clone(), nil
}

func (f *fakeJobs) Status(ctx context.Context, id uuid.UUID) (models.JobStatus, error) {
	job, err := f.Get(ctx, id)
	if err != nil {
		return models.JobStatus{}, err
	}
	return job.Status(), nil
}

func (f *fakeJobs) List(ctx context.Context, state *models.JobState) ([]*models.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Job
	for _, job := range f.jobs {
		if state == nil || job.State == *state {
			out = append(out, job.Clone())
		}
	}
	return out, nil
}

func (f *fakeJobs) put(job *models.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[job.ID] = job
}

func (f *fakeJobs) set(id uuid.UUID, state models.JobState, progress int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[id].State = state
	f.jobs[id].Progress = progress
}

func newTestServer(t *testing.T, jobs *fakeJobs, cfg RouterConfig) *httptest.Server {
	t.Helper()
	h := NewHandler(jobs)
	h.pollInterval = 5 * time.Millisecond
	srv := httptest.NewServer(NewRouter(h, cfg))
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestCreateVideo(t *testing.T) {
	jobs := newFakeJobs()
	srv := newTestServer(t, jobs, RouterConfig{})

	resp, body := post(t, srv.URL+"/v1/videos", `{
		"script": {"title": "demo", "scenes": [{"text": "Hola mundo", "imagePrompt": "sunrise"}, {"narration": "Adios"}]},
		"settings": {"imageGenerationMethod": "stockPhoto", "backgroundMusic": true}
	}`)

	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (%v)", resp.StatusCode, body)
	}
	if body["status"] != "pending" || body["jobId"] == "" {
		t.Errorf("unexpected body %v", body)
	}
	if len(jobs.submitted) != 1 || len(jobs.submitted[0]) != 2 || jobs.submitted[0][1].Text != "Adios" {
		t.Errorf("scenes not passed through: %+v", jobs.submitted)
	}
	if s := jobs.settings[0]; s.ImageGenerationMethod != models.ImageMethodStockPhoto || !s.BackgroundMusic {
		t.Errorf("settings not passed through: %+v", s)
	}
}

func TestCreateVideoRejectsBadInput(t *testing.T) {
	srv := newTestServer(t, newFakeJobs(), RouterConfig{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"no script", `{"settings": {}}`},
		{"missing scenes", `{"script": {"title": "x"}}`},
		{"scenes not an array", `{"script": {"scenes": "one"}}`},
		{"empty scenes", `{"script": {"scenes": []}}`},
		{"bad settings", `{"script": {"scenes": [{"text": "x"}]}, "settings": {"fps": 500}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, srv.URL+"/v1/videos", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
			if body["error"] == nil {
				t.Error("missing error message")
			}
		})
	}
}

func TestCreateVideoSubmitFailure(t *testing.T) {
	jobs := newFakeJobs()
	jobs.submitErr = errors.New("redis down")
	srv := newTestServer(t, jobs, RouterConfig{})

	resp, _ := post(t, srv.URL+"/v1/videos", `{"script": {"scenes": [{"text": "x"}]}}`)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
}

func TestGetVideo(t *testing.T) {
	jobs := newFakeJobs()
	srv := newTestServer(t, jobs, RouterConfig{})

	url := "http://localhost/output/video_1.mp4"
	job := &models.Job{ID: uuid.New(), State: models.JobStateCompleted, Progress: 100, OutputLocation: &url, DegradedScenes: []int{1}}
	jobs.put(job)

	resp, err := http.Get(srv.URL + "/v1/videos/" + job.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var status models.JobStatus
	json.NewDecoder(resp.Body).Decode(&status)
	if resp.StatusCode != http.StatusOK || status.State != models.JobStateCompleted || *status.OutputLocation != url {
		t.Errorf("unexpected response %d %+v", resp.StatusCode, status)
	}

	for path, want := range map[string]int{
		"/v1/videos/" + uuid.NewString(): http.StatusNotFound,
		"/v1/videos/not-a-uuid":          http.StatusBadRequest,
	} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("%s: expected %d, got %d", path, want, resp.StatusCode)
		}
	}
}

func TestListVideos(t *testing.T) {
	jobs := newFakeJobs()
	srv := newTestServer(t, jobs, RouterConfig{})

	jobs.put(&models.Job{ID: uuid.New(), State: models.JobStateCompleted})
	jobs.put(&models.Job{ID: uuid.New(), State: models.JobStateCompleted})
	jobs.put(&models.Job{ID: uuid.New(), State: models.JobStateFailed})

	for query, want := range map[string]int{"": 2, "?state=failed": 1, "?state=all": 3, "?state=pending": 0} {
		resp, err := http.Get(srv.URL + "/v1/videos" + query)
		if err != nil {
			t.Fatal(err)
		}
		var list models.ListVideosResponse
		json.NewDecoder(resp.Body).Decode(&list)
		resp.Body.Close()
		if list.Total != want || len(list.Videos) != want {
			t.Errorf("%q: expected %d videos, got %d", query, want, list.Total)
		}
	}

	resp, _ := http.Get(srv.URL + "/v1/videos?state=done")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown state, got %d", resp.StatusCode)
	}
}

func TestDownloadRedirectsWhenReady(t *testing.T) {
	jobs := newFakeJobs()
	srv := newTestServer(t, jobs, RouterConfig{})
	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}

	url := "https://cdn.example.com/videos/video_abc.mp4"
	ready := &models.Job{ID: uuid.New(), State: models.JobStateCompleted, OutputLocation: &url}
	running := &models.Job{ID: uuid.New(), State: models.JobStateProcessing}
	jobs.put(ready)
	jobs.put(running)

	resp, err := client.Get(srv.URL + "/v1/videos/" + ready.ID.String() + "/download")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusTemporaryRedirect || resp.Header.Get("Location") != url {
		t.Errorf("unexpected redirect %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	resp, _ = client.Get(srv.URL + "/v1/videos/" + running.ID.String() + "/download")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unfinished job, got %d", resp.StatusCode)
	}
}

func TestStreamVideoStatus(t *testing.T) {
	jobs := newFakeJobs()
	srv := newTestServer(t, jobs, RouterConfig{})

	job := &models.Job{ID: uuid.New(), State: models.JobStateProcessing, Progress: 10}
	jobs.put(job)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/videos/" + job.ID.String() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first models.JobStatus
	if err := conn.ReadJSON(&first); err != nil || first.Progress != 10 {
		t.Fatalf("first message %+v %v", first, err)
	}

	jobs.set(job.ID, models.JobStateProcessing, 66)
	var second models.JobStatus
	if err := conn.ReadJSON(&second); err != nil || second.Progress != 66 {
		t.Fatalf("second message %+v %v", second, err)
	}

	jobs.set(job.ID, models.JobStateCompleted, 100)
	var last models.JobStatus
	if err := conn.ReadJSON(&last); err != nil || last.State != models.JobStateCompleted {
		t.Fatalf("final message %+v %v", last, err)
	}

	_, _, err = conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("expected normal close, got %v", err)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	jobs := newFakeJobs()
	srv := newTestServer(t, jobs, RouterConfig{BackendAPIKey: "secret"})

	for _, tc := range []struct {
		header, value string
		want          int
	}{
		{"", "", http.StatusUnauthorized},
		{"X-API-Key", "wrong", http.StatusForbidden},
		{"X-API-Key", "secret", http.StatusOK},
		{"Authorization", "Bearer secret", http.StatusOK},
	} {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/videos", nil)
		if tc.header != "" {
			req.Header.Set(tc.header, tc.value)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != tc.want {
			t.Errorf("%s=%q: expected %d, got %d", tc.header, tc.value, tc.want, resp.StatusCode)
		}
	}

	resp, _ := http.Get(srv.URL + "/health")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health must stay public, got %d", resp.StatusCode)
	}
}

func TestOutputIsServed(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "video_x.mp4"), []byte("mp4 bytes"), 0o644)
	srv := newTestServer(t, newFakeJobs(), RouterConfig{OutputDir: dir, BackendAPIKey: "secret"})

	resp, err := http.Get(srv.URL + "/output/video_x.mp4")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestRequestAPIKey(t *testing.T) {
	plain := httptest.NewRequest(http.MethodGet, "/v1/videos?api_key=q", nil)
	if got := requestAPIKey(plain); got != "" {
		t.Errorf("query key must be ignored outside websocket upgrades, got %q", got)
	}

	upgrade := httptest.NewRequest(http.MethodGet, "/v1/videos/x/ws?api_key=q", nil)
	upgrade.Header.Set("Connection", "Upgrade")
	upgrade.Header.Set("Upgrade", "websocket")
	if got := requestAPIKey(upgrade); got != "q" {
		t.Errorf("expected query key on upgrade, got %q", got)
	}

	upgrade.Header.Set("X-API-Key", "h")
	if got := requestAPIKey(upgrade); got != "h" {
		t.Errorf("header key should win, got %q", got)
	}
}
