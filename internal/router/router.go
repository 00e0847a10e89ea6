package router

import (
	"net/http"

	"memberhub-api/internal/handler"
	"memberhub-api/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler         *handler.Handler
	RedeemHandler   *handler.RedeemHandler
	AdminHandler    *handler.AdminHandler
	BotMiddleware   func(http.Handler) http.Handler
	AdminMiddleware func(http.Handler) http.Handler
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Bot-Secret", "X-Admin-Secret"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}

	// Bot-facing redemption routes
	if cfg.RedeemHandler != nil {
		r.Group(func(r chi.Router) {
			if cfg.BotMiddleware != nil {
				r.Use(cfg.BotMiddleware)
			}
			r.Route("/api/v1/redeem", func(r chi.Router) {
				r.Post("/message", cfg.RedeemHandler.Message)
				r.Post("/form", cfg.RedeemHandler.Form)
			})
		})
	}

	// Operator routes
	if cfg.AdminHandler != nil {
		r.Group(func(r chi.Router) {
			if cfg.AdminMiddleware != nil {
				r.Use(cfg.AdminMiddleware)
			}
			r.Route("/api/v1/admin", func(r chi.Router) {
				r.Post("/expiry/scan", cfg.AdminHandler.TriggerExpiryScan)
				r.Post("/expiry/remind", cfg.AdminHandler.TriggerReminder)
				r.Post("/roles/remove", cfg.AdminHandler.RemoveRole)
			})
		})
	}

	return r
}
