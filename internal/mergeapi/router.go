package mergeapi

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterConfig struct {
	// MaxBodyBytes caps request bodies; merge uploads are large, so the
	// default config allows 200MB. Zero disables the cap.
	MaxBodyBytes int64
}

// NewRouter wires the sidecar routes. The service is meant to sit next to
// the main API on a private port, so there is no auth and no CORS layer.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.MaxBodyBytes > 0 {
		r.Use(middleware.RequestSize(cfg.MaxBodyBytes))
	}

	r.Get("/health", h.Health)
	r.Post("/api/v1/merge-audio-video", h.MergeAudioVideo)
	r.Get("/api/media/{filename}", h.ServeMedia)

	return r
}
