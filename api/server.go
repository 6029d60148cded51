/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:    Request logging
  2. Recoverer: Panic recovery (500 instead of crash)
  3. RequestID: Unique ID per request for tracing
  4. CORS:      Cross-origin requests for the dashboard frontend
  5. WithAuth:  Caller identity resolution (see auth.go)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, auth AuthProvider) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Organization-Id", "X-User-Id", "X-Role"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Use(WithAuth(auth))

		r.Route("/enrollments", func(r chi.Router) {
			r.Post("/", h.CreateEnrollment)
			r.Post("/bulk", h.BulkTransition)
			r.Get("/{id}", h.GetEnrollment)
			r.Post("/{id}/order", h.AttachOrder)
			r.Post("/{id}/transition", h.Transition)
			r.Get("/{id}/history", h.History)
		})

		r.Route("/campaigns", func(r chi.Router) {
			r.Get("/{id}/payout", h.PayoutPreview)
		})

		r.Route("/organizations", func(r chi.Router) {
			r.Get("/{id}/wallet", h.GetWallet)
			r.Post("/{id}/wallet/deposit", h.Deposit)
		})
	})

	return r
}
