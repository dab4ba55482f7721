/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests, origins from configuration

ROUTE GROUPS:
  /api/rules, /api/programs   Catalog (read-only)
  /api/calculate, /compare    Stateless calculations
  /api/accounts/{id}/*        Ledger, statements and stored calculations
  /api/calculations/{id}      Stored calculation lookup
  /api/scenarios/*            Demo data (resets the database)
  /metrics                    Prometheus exposition, when enabled

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/warp/rewards-engine/metrics"
)

// RouterOptions configure cross-cutting concerns of the router.
type RouterOptions struct {
	AllowedOrigins []string
	MetricsEnabled bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/rules", h.ListRules)
		r.Get("/programs", h.ListPrograms)
		r.Post("/calculate", h.Calculate)
		r.Post("/compare", h.Compare)

		r.Route("/accounts/{id}", func(r chi.Router) {
			r.Get("/transactions", h.GetTransactions)
			r.Post("/transactions", h.RecordTransactions)
			r.Post("/transactions/import", h.ImportTransactions)
			r.Get("/spend", h.GetSpend)
			r.Get("/statements", h.GetStatements)
			r.Get("/calculations", h.ListCalculations)
			r.Post("/calculations", h.CreateCalculation)
		})

		r.Get("/calculations/{id}", h.GetCalculation)

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	if opts.MetricsEnabled {
		r.Handle("/metrics", metrics.Handler())
	}

	return r
}
