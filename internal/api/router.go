package api

import (
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// RouterConfig holds settings for the API router, passed from main.go so the
// router can configure CORS, auth and upload limits from env vars.
type RouterConfig struct {
	// APIKey must be provided in X-API-Key or Authorization: Bearer <key>.
	// If empty, auth middleware is skipped (development mode).
	APIKey string

	// AllowedOrigins is a comma-separated list of allowed CORS origins.
	// If empty, defaults to "*" (development mode).
	AllowedOrigins string

	// MaxBodyBytes caps request bodies, image uploads included. 0 = no cap.
	MaxBodyBytes int64
}

func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(cfg.MaxBodyBytes))
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   parseOrigins(cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public, no auth required
	r.Get("/", h.Index)
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		if cfg.APIKey != "" {
			r.Use(APIKeyAuth(cfg.APIKey))
		}

		r.Route("/projects", func(r chi.Router) {
			r.Get("/", h.ListProjects)
			r.Post("/", h.CreateProject)

			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", h.GetProject)
				r.Delete("/", h.DeleteProject)

				r.Post("/images", h.UploadImage)
				r.Get("/images", h.ListImages)
				r.Delete("/images/{imageID}", h.DeleteImage)

				// Single-image route kept for older clients
				r.Put("/image", h.UploadLegacyImage)
				r.Post("/image", h.UploadLegacyImage)

				r.Post("/script/generate", h.GenerateScript)
				r.Put("/script", h.UpdateScript)

				r.Post("/speech/generate", h.GenerateSpeech)
				r.Post("/video/generate", h.GenerateVideo)
				r.Post("/video/narrate", h.NarrateVideo)
			})
		})

		// Media serving
		r.Get("/images/{ref}", h.ServeImage)
		r.Get("/images/{projectID}/{filename}", h.ServeLegacyImage)
		r.Get("/speeches/{projectID}/{filename}", h.ServeSpeech)
		r.Get("/videos/{projectID}/{filename}", h.ServeVideo)
	})

	return r
}

// parseOrigins splits the comma-separated origin list, defaulting to "*"
// when nothing usable is configured.
func parseOrigins(raw string) []string {
	if raw == "" {
		return []string{"*"}
	}

	origins := strings.Split(raw, ",")
	trimmed := make([]string, 0, len(origins))
	for _, o := range origins {
		if s := strings.TrimSpace(o); s != "" {
			trimmed = append(trimmed, s)
		}
	}
	if len(trimmed) == 0 {
		return []string{"*"}
	}
	return trimmed
}
