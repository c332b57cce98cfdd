/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for local tooling

SECURITY NOTE:
  No authentication middleware. This is a development/demo surface;
  caller identity comes from request bodies.

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
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Time-lock routes
		r.Route("/locks", func(r chi.Router) {
			r.Post("/", h.CreateLock)
			r.Get("/{id}", h.GetLock)
			r.Get("/{id}/certificate", h.GetCertificate)
			r.Post("/{id}/extend", h.ExtendLock)
			r.Post("/{id}/transfer", h.TransferLock)
			r.Post("/{id}/withdraw", h.WithdrawLock)
		})

		// Vesting routes
		r.Route("/vestings", func(r chi.Router) {
			r.Post("/", h.CreateVesting)
			r.Get("/{id}", h.GetVesting)
			r.Get("/{id}/claimable", h.GetClaimable)
			r.Post("/{id}/claim", h.ClaimVesting)
			r.Post("/{id}/transfer", h.TransferVesting)
		})

		// Owner reverse-index routes
		r.Route("/owners", func(r chi.Router) {
			r.Get("/{addr}/locks", h.OwnerLocks)
			r.Get("/{addr}/vestings", h.OwnerVestings)
		})

		// Event feed and configuration
		r.Get("/events", h.ListEvents)
		r.Get("/config", h.GetConfig)

		// Dev surface
		r.Route("/tokens", func(r chi.Router) {
			r.Post("/", h.RegisterToken)
			r.Post("/{addr}/mint", h.MintToken)
		})
		r.Post("/accounts/{addr}/fund", h.FundAccount)
	})

	return r
}
