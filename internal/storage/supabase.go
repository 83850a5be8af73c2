package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path"
	"strings"
	"time"
)

const (
	// Upload timeout per attempt; final videos can be tens of MB
	uploadTimeout = 180 * time.Second

	maxRetries    = 4
	maxRetryDelay = 30 * time.Second
)

// SupabasePublisher uploads videos to a Supabase Storage bucket and returns
// their public URL.
type SupabasePublisher struct {
	url        string
	serviceKey string
	bucket     string
	prefix     string
	baseDelay  time.Duration
	client     *http.Client
}

func NewSupabasePublisher(url, serviceKey, bucket string) *SupabasePublisher {
	return &SupabasePublisher{
		url:        strings.TrimRight(url, "/"),
		serviceKey: serviceKey,
		bucket:     bucket,
		prefix:     "videos",
		baseDelay:  time.Second,
		client: &http.Client{
			Timeout: uploadTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (s *SupabasePublisher) Publish(ctx context.Context, localPath, name string) (string, error) {
	objectPath := path.Join(s.prefix, name)
	if err := s.UploadFile(ctx, objectPath, localPath, contentTypeFor(name)); err != nil {
		return "", err
	}
	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		log.Printf("[Storage] Failed to remove uploaded file %s: %v", localPath, err)
	}
	return s.GetPublicURL(objectPath), nil
}

// UploadFile streams a local file to Supabase Storage with retries and
// exponential backoff. Uses PUT with x-upsert so a retry never conflicts.
func (s *SupabasePublisher) UploadFile(ctx context.Context, objectPath, localPath, contentType string) error {
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	url := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.url, s.bucket, objectPath)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			delay := s.retryDelay(attempt)
			log.Printf("[Storage] Upload retry %d/%d for %s (waiting %v)...", attempt, maxRetries, objectPath, delay)

			select {
			case <-ctx.Done():
				return fmt.Errorf("upload cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		status, body, err := s.putOnce(ctx, url, localPath, info.Size(), contentType)
		if err != nil {
			lastErr = fmt.Errorf("failed to upload: %w", err)
			if isRetryableError(err) {
				log.Printf("[Storage] Upload attempt %d failed (retryable): %v", attempt+1, err)
				continue
			}
			return lastErr
		}

		if status == http.StatusOK || status == http.StatusCreated {
			if attempt > 0 {
				log.Printf("[Storage] Upload succeeded on attempt %d for %s", attempt+1, objectPath)
			}
			return nil
		}

		lastErr = fmt.Errorf("upload failed with status %d: %s", status, body)
		if isRetryableStatus(status) {
			log.Printf("[Storage] Upload attempt %d returned status %d (retryable): %s", attempt+1, status, truncate(body, 200))
			continue
		}
		return lastErr
	}

	return fmt.Errorf("upload failed after %d attempts: %w", maxRetries+1, lastErr)
}

func (s *SupabasePublisher) putOnce(ctx context.Context, url, localPath string, size int64, contentType string) (int, string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(uploadCtx, http.MethodPut, url, f)
	if err != nil {
		return 0, "", err
	}
	req.ContentLength = size
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return resp.StatusCode, string(body), nil
}

// GetPublicURL returns the public URL for an object
func (s *SupabasePublisher) GetPublicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.url, s.bucket, objectPath)
}

// retryDelay calculates exponential backoff with jitter: base * 2^(attempt-1) + jitter
func (s *SupabasePublisher) retryDelay(attempt int) time.Duration {
	delay := float64(s.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxRetryDelay) {
		delay = float64(maxRetryDelay)
	}
	// 0-25% jitter
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}

// isRetryableError checks if a network-level error is worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "EOF") ||
		strings.Contains(errStr, "broken pipe")
}

// isRetryableStatus checks if an HTTP status code is worth retrying
func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusRequestTimeout ||
		status == http.StatusBadGateway ||
		status == http.StatusServiceUnavailable ||
		status == http.StatusGatewayTimeout
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
