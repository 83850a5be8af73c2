package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const pexelsBaseURL = "https://api.pexels.com"

// PexelsService searches the Pexels photo library and downloads the best
// match for a keyword query.
type PexelsService struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewPexelsService(apiKey string) *PexelsService {
	return &PexelsService{
		apiKey:  apiKey,
		baseURL: pexelsBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// WithBaseURL points the service at another host (used by tests).
func (s *PexelsService) WithBaseURL(u string) *PexelsService {
	s.baseURL = strings.TrimRight(u, "/")
	return s
}

type pexelsSearchResponse struct {
	TotalResults int `json:"total_results"`
	Photos       []struct {
		ID  int `json:"id"`
		Src struct {
			Original string `json:"original"`
			Large2x  string `json:"large2x"`
			Portrait string `json:"portrait"`
			Large    string `json:"large"`
		} `json:"src"`
	} `json:"photos"`
}

// SearchPhoto returns the bytes of the first photo matching query.
// orientation is one of portrait, landscape or square.
func (s *PexelsService) SearchPhoto(ctx context.Context, query, orientation string) ([]byte, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("pexels: empty query")
	}

	q := url.Values{}
	q.Set("query", query)
	q.Set("per_page", "1")
	if orientation != "" {
		q.Set("orientation", orientation)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create pexels request: %w", err)
	}
	req.Header.Set("Authorization", s.apiKey)

	log.Printf("[Pexels] Searching photo (query=%q, orientation=%s)", query, orientation)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pexels request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pexels returned status %d: %s", resp.StatusCode, string(body))
	}

	var result pexelsSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode pexels response: %w", err)
	}
	if len(result.Photos) == 0 {
		return nil, fmt.Errorf("pexels: no photos for %q", query)
	}

	src := result.Photos[0].Src
	photoURL := firstNonEmpty(src.Portrait, src.Large2x, src.Large, src.Original)
	if orientation != "portrait" {
		photoURL = firstNonEmpty(src.Large2x, src.Large, src.Original, src.Portrait)
	}
	if photoURL == "" {
		return nil, fmt.Errorf("pexels: photo %d has no usable source", result.Photos[0].ID)
	}

	return s.download(ctx, photoURL)
}

func (s *PexelsService) download(ctx context.Context, photoURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, photoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("photo download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photo download returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("photo download returned no data")
	}
	return data, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
