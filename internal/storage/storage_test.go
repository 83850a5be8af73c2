package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLocalPublisherMovesFile(t *testing.T) {
	work := t.TempDir()
	out := filepath.Join(t.TempDir(), "output")

	pub, err := NewLocalPublisher(out, "http://localhost:8080/")
	if err != nil {
		t.Fatalf("NewLocalPublisher: %v", err)
	}

	src := writeTemp(t, work, "video_abc.mp4", "video")
	loc, err := pub.Publish(context.Background(), src, "video_abc.mp4")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if loc != "http://localhost:8080/output/video_abc.mp4" {
		t.Errorf("unexpected location %s", loc)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source should be moved away")
	}
	data, err := os.ReadFile(filepath.Join(out, "video_abc.mp4"))
	if err != nil || string(data) != "video" {
		t.Errorf("published file missing or wrong: %v %q", err, data)
	}
}

func TestLocalPublisherCancelled(t *testing.T) {
	pub, _ := NewLocalPublisher(t.TempDir(), "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := pub.Publish(ctx, "whatever.mp4", "whatever.mp4"); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestSupabasePublisherRetriesThenSucceeds(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if r.Method != http.MethodPut || r.URL.Path != "/storage/v1/object/bucket/videos/video_1.mp4" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("x-upsert") != "true" || r.Header.Get("Authorization") != "Bearer svc" {
			t.Errorf("missing headers %v", r.Header)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "mp4-bytes" {
			t.Errorf("unexpected body %q", body)
		}
		if n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pub := NewSupabasePublisher(server.URL, "svc", "bucket")
	pub.baseDelay = time.Millisecond

	src := writeTemp(t, t.TempDir(), "video_1.mp4", "mp4-bytes")
	loc, err := pub.Publish(context.Background(), src, "video_1.mp4")
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if !strings.HasSuffix(loc, "/storage/v1/object/public/bucket/videos/video_1.mp4") {
		t.Errorf("unexpected location %s", loc)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("uploaded file should be removed locally")
	}
}

func TestSupabasePublisherNonRetryable(t *testing.T) {
	var attempts int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	pub := NewSupabasePublisher(server.URL, "svc", "bucket")
	pub.baseDelay = time.Millisecond

	src := writeTemp(t, t.TempDir(), "v.mp4", "x")
	if _, err := pub.Publish(context.Background(), src, "v.mp4"); err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("401 must not be retried, got %d attempts", attempts)
	}
	if _, err := os.Stat(src); err != nil {
		t.Error("file must be kept when upload fails")
	}
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{429, 408, 502, 503, 504} {
		if !isRetryableStatus(code) {
			t.Errorf("%d should be retryable", code)
		}
	}
	for _, code := range []int{400, 401, 403, 404, 413} {
		if isRetryableStatus(code) {
			t.Errorf("%d should not be retryable", code)
		}
	}
}
