package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AnshRaj112/fonoterapia-backend/internal/handlers"
)

func SetupRoutes(r chi.Router, h *handlers.Handler, store handlers.Pinger) {
	r.Get("/", handlers.Home(store))
	r.Get("/test", handlers.Hello)
	r.Get("/health", handlers.Health(store))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Accounts
	r.Post("/register_user", h.Register)
	r.Post("/login_user", h.Login)

	// Therapy sessions
	r.Route("/therapy", func(r chi.Router) {
		r.Post("/session/start", h.StartSession)
		r.Post("/session/{id}/answer", h.RecordAnswer)
		r.Put("/session/{id}/end", h.EndSession)

		r.Get("/user/{id}/resume", h.Resume)
		r.Get("/user/{id}/quick-stats", h.QuickStats)

		// WebSocket stream of a user's progress events
		r.Get("/user/{id}/live", h.LiveProgress)
	})
}
