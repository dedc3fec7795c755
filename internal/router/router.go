package router

import (
	"net/http"

	"mailshop-bot/internal/handler"
	"mailshop-bot/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	AdminHandler   *handler.AdminHandler
	AuthMiddleware func(http.Handler) http.Handler
}

// New creates and configures the HTTP router for the ops API.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", "X-Login-Key"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// PUBLIC routes (no auth required)
	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
		r.Get("/api/v1/health", cfg.Handler.Health)
	}

	// STAFF routes behind the login key
	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Route("/api/v1/admin", func(r chi.Router) {
			if cfg.AdminHandler != nil {
				r.Get("/stats", cfg.AdminHandler.GetStats)
				r.Get("/deposits", cfg.AdminHandler.GetPendingDeposits)
				r.Get("/users", cfg.AdminHandler.GetUsers)
				r.Get("/users/{user_id}/transactions", cfg.AdminHandler.GetUserTransactions)
				r.Get("/sheet", cfg.AdminHandler.GetSheetStatus)
			}
		})
	})

	return r
}
