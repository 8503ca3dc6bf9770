package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"impostor/internal/config"
	localMiddleware "impostor/internal/middleware"
)

// RouterOptions allows customization of router setup for tests
type RouterOptions struct {
	DisableRateLimiting  bool
	DisableRequestLogger bool
	CustomMiddleware     []func(http.Handler) http.Handler
}

// SetupRouter creates the application router with all routes and middleware
func SetupRouter(h *Handler, cfg *config.ServerConfig, opts *RouterOptions) *chi.Mux {
	if opts == nil {
		opts = &RouterOptions{}
	}

	r := chi.NewRouter()

	if !opts.DisableRequestLogger {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(localMiddleware.RequestSizeLimiter(cfg.Server.MaxRequestSize))
	r.Use(localMiddleware.SecurityHeaders())

	if !opts.DisableRateLimiting {
		h.limiter = localMiddleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateLimitBurst)
		r.Use(h.limiter.Middleware())
	}

	for _, mw := range opts.CustomMiddleware {
		r.Use(mw)
	}

	// Long-lived streams stay outside the request timeout
	r.Get("/ws", h.ServeWS)
	r.With(localMiddleware.DatastarQuery("theme", "room", "event", "timer", "last")).
		Get("/sse/room/{code}", h.StreamRoom)

	r.Group(func(r chi.Router) {
		if cfg.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
		}

		r.Get("/room/{code}/qr.png", h.RoomQR)

		r.Route("/api", func(r chi.Router) {
			r.Get("/rooms/{code}", h.GetRoomStatus)
			r.Get("/categories", h.ListCategories)

			r.Route("/local/sessions", func(r chi.Router) {
				r.Post("/", h.CreateLocalSession)
				r.Get("/{id}", h.GetLocalSession)
				r.Delete("/{id}", h.DeleteLocalSession)
				r.Post("/{id}/{intent}", h.LocalIntent)
			})
		})

		r.Get("/health/live", h.Live)
		r.Get("/health/ready", h.Ready)
	})

	return r
}
