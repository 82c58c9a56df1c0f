package api

import (
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds settings for the API router.
// Passed from main.go so the router can configure CORS and auth from env vars.
type RouterConfig struct {
	// BackendAPIKey is the key that must be provided in X-API-Key or
	// Authorization: Bearer <key>. If empty, auth middleware is skipped
	// (development mode).
	BackendAPIKey string

	// CorsAllowedOrigins is a comma-separated list of allowed origins.
	// If empty, defaults to "*" (development mode).
	CorsAllowedOrigins string
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// CORS: restrict origins when configured, otherwise allow all (dev mode)
	allowedOrigins := []string{"*"}
	if cfg.CorsAllowedOrigins != "" {
		origins := strings.Split(cfg.CorsAllowedOrigins, ",")
		trimmed := make([]string, 0, len(origins))
		for _, o := range origins {
			if s := strings.TrimSpace(o); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			allowedOrigins = trimmed
		}
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check is public, no auth required
	r.Get("/health", h.Health)

	r.Route("/v1", func(r chi.Router) {
		if cfg.BackendAPIKey != "" {
			r.Use(APIKeyAuth(cfg.BackendAPIKey))
		}

		// Projects
		r.Get("/projects", h.ListProjects)
		r.Post("/projects", h.CreateProject)
		r.Get("/projects/{id}", h.GetProject)
		r.Put("/projects/{id}/status", h.UpdateProjectStatus)
		r.Delete("/projects/{id}", h.DeleteProject)

		// Chapters
		r.Post("/projects/{id}/chapters", h.CreateChapter)
		r.Get("/projects/{id}/chapters", h.ListChapters)
		r.Get("/projects/{id}/chapters/{chapterID}", h.GetChapter)
		r.Put("/projects/{id}/chapters/{chapterID}", h.UpdateChapter)
		r.Delete("/projects/{id}/chapters/{chapterID}", h.DeleteChapter)

		// Pipeline
		r.Post("/projects/{id}/chapters/{chapterID}/analyze", h.AnalyzeChapter)
		r.Post("/projects/{id}/chapters/{chapterID}/generate", h.GenerateChapter)

		// Cast and voices
		r.Get("/projects/{id}/characters", h.ListCharacters)
		r.Put("/characters/{id}/voice", h.SetVoiceAssignment)
		r.Delete("/characters/{id}/voice", h.RemoveVoiceAssignment)
		r.Get("/voices", h.ListVoices)

		// Blocks
		r.Post("/blocks/{id}/regenerate", h.RegenerateBlock)
		r.Put("/blocks/{id}/notes", h.SaveDirectorNotes)
	})

	return r
}
