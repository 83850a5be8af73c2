package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestPexelsSearchPhoto(t *testing.T) {
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/search":
			if r.Header.Get("Authorization") != "pexels-key" {
				t.Error("missing authorization header")
			}
			q := r.URL.Query()
			if q.Get("query") != "oceano azul" || q.Get("orientation") != "portrait" {
				t.Errorf("unexpected query %v", q)
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"total_results": 1,
				"photos": []map[string]interface{}{
					{"id": 7, "src": map[string]string{"portrait": server.URL + "/photos/7.jpg"}},
				},
			})
		case "/photos/7.jpg":
			w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	data, err := NewPexelsService("pexels-key").WithBaseURL(server.URL).SearchPhoto(context.Background(), "oceano azul", "portrait")
	if err != nil {
		t.Fatalf("SearchPhoto: %v", err)
	}
	if len(data) != 4 {
		t.Errorf("unexpected photo bytes %v", data)
	}
}

func TestPexelsNoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total_results":0,"photos":[]}`))
	}))
	defer server.Close()

	if _, err := NewPexelsService("k").WithBaseURL(server.URL).SearchPhoto(context.Background(), "nada", "portrait"); err == nil {
		t.Fatal("expected error when no photos match")
	}
}

func TestOpenAIGenerateImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/generations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req openai.ImageRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Size != openai.CreateImageSize1024x1792 {
			t.Errorf("expected portrait size, got %s", req.Size)
		}
		if req.ResponseFormat != openai.CreateImageResponseFormatB64JSON {
			t.Errorf("expected b64_json, got %s", req.ResponseFormat)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"created": 1,
			"data":    []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString(png)}},
		})
	}))
	defer server.Close()

	cfg := openai.DefaultConfig("key")
	cfg.BaseURL = server.URL + "/v1"
	svc := NewOpenAIServiceWithConfig(cfg, "", "")

	data, err := svc.GenerateImage(context.Background(), "a lighthouse", 1080, 1920)
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if string(data) != string(png) {
		t.Errorf("unexpected image bytes %v", data)
	}
}

func TestGeminiGenerateImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a}

	tests := []struct {
		name       string
		candidates []map[string]interface{}
		wantErr    string
	}{
		{
			name: "inline image",
			candidates: []map[string]interface{}{{
				"content": map[string]interface{}{
					"role": "model",
					"parts": []map[string]interface{}{
						{"text": "here you go"},
						{"inlineData": map[string]string{"mimeType": "image/png", "data": base64.StdEncoding.EncodeToString(png)}},
					},
				},
			}},
		},
		{
			name: "text only",
			candidates: []map[string]interface{}{{
				"content": map[string]interface{}{
					"role":  "model",
					"parts": []map[string]interface{}{{"text": "I cannot draw that"}},
				},
			}},
			wantErr: "text instead of image",
		},
		{
			name:       "no candidates",
			candidates: []map[string]interface{}{},
			wantErr:    "no candidates",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prompt string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if !strings.HasSuffix(r.URL.Path, "/models/test-image-model:generateContent") {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.Header.Get("x-goog-api-key") != "gemini-key" {
					t.Error("missing api key header")
				}
				var body struct {
					Contents []struct {
						Parts []struct {
							Text string `json:"text"`
						} `json:"parts"`
					} `json:"contents"`
				}
				json.NewDecoder(r.Body).Decode(&body)
				if len(body.Contents) > 0 && len(body.Contents[0].Parts) > 0 {
					prompt = body.Contents[0].Parts[0].Text
				}
				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]interface{}{"candidates": tt.candidates})
			}))
			defer server.Close()

			svc := NewGeminiService("gemini-key", "test-image-model").WithBaseURL(server.URL)
			data, err := svc.GenerateImage(context.Background(), "a red fox", 1080, 1920)

			if !strings.Contains(prompt, "a red fox") || !strings.Contains(prompt, "portrait") || !strings.Contains(prompt, "9:16") {
				t.Errorf("unexpected prompt %q", prompt)
			}
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GenerateImage: %v", err)
			}
			if string(data) != string(png) {
				t.Errorf("unexpected image bytes %v", data)
			}
		})
	}
}

func TestAspectRatio(t *testing.T) {
	tests := []struct {
		w, h int
		want string
	}{
		{1080, 1920, "9:16"},
		{1920, 1080, "16:9"},
		{512, 512, "1:1"},
	}
	for _, tt := range tests {
		if got := aspectRatio(tt.w, tt.h); got != tt.want {
			t.Errorf("aspectRatio(%d,%d) = %s, want %s", tt.w, tt.h, got, tt.want)
		}
	}
}
