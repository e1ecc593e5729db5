package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Routes(m *Middleware, corsOrigins []string, rateLimitRPM int) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(middleware.Compress(5, "application/json"))
	r.Use(m.Timeout(15 * time.Second))
	r.Use(middleware.Heartbeat("/ping"))

	// CORS and rate limiting - configured from main
	r.Use(m.CORS(corsOrigins))
	r.Use(m.RateLimit(rateLimitRPM))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/db/{db}", func(r chi.Router) {
			r.Route("/strings/{key}", func(r chi.Router) {
				r.Get("/", h.GetString)
				r.Put("/", h.PutString)
				r.Delete("/", h.DeleteKey)
			})

			r.Route("/keys/{key}", func(r chi.Router) {
				r.Delete("/", h.DeleteKey)
				r.Get("/ttl", h.GetTTL)
				r.Put("/ttl", h.PutTTL)
			})

			r.Route("/hashes/{key}", func(r chi.Router) {
				r.Get("/", h.GetHash)
				r.Put("/", h.PutHash)
			})

			r.Route("/sets/{key}", func(r chi.Router) {
				r.Get("/", h.GetSet)
				r.Post("/", h.AddSetMember)
				r.Post("/pop", h.PopSetMember)
			})
		})

		r.Route("/lifetimes", func(r chi.Router) {
			r.Get("/", h.GetLifetimes)
			r.Post("/reset", h.ResetLifetimes)
			r.Put("/{db}", h.PutLifetime)
		})

		r.Put("/default-db", h.PutDefaultDB)
	})

	return r
}
