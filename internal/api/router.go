package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds settings for the API router.
type RouterConfig struct {
	// BackendAPIKey guards /v1. Empty disables auth (development mode).
	BackendAPIKey string

	// CorsAllowedOrigins is a comma-separated origin list. Empty allows all.
	CorsAllowedOrigins string

	// OutputDir is served under /output/ when set (local publishing).
	OutputDir string
}

func allowedOrigins(list string) []string {
	var origins []string
	for _, o := range strings.Split(list, ",") {
		if s := strings.TrimSpace(o); s != "" {
			origins = append(origins, s)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CorsAllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	// Public so returned video URLs open directly in a browser
	if cfg.OutputDir != "" {
		r.Handle("/output/*", http.StripPrefix("/output/", http.FileServer(http.Dir(cfg.OutputDir))))
	}

	r.Route("/v1/videos", func(r chi.Router) {
		if cfg.BackendAPIKey != "" {
			r.Use(APIKeyAuth(cfg.BackendAPIKey))
		}

		r.Get("/", h.ListVideos)
		r.Post("/", h.CreateVideo)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetVideo)
			r.Get("/download", h.GetVideoDownload)
			r.Get("/ws", h.StreamVideoStatus)
		})
	})

	return r
}
