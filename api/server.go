/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/obligations/*    Rent obligation catalog
  /api/accruals/*       Periodic recognition
  /api/receipts         Tenant payments
  /api/expenses         Expense payments
  /api/entries/*        Ledger queries and corrections
  /api/statements/*     Financial reports
  /api/arrears/*        Arrears views
  /api/accounts/*       Chart of accounts
  /api/admin/*          Manual adjustments
  /api/scenarios/*      Demo scenarios

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

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
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Obligation routes
		r.Route("/obligations", func(r chi.Router) {
			r.Get("/", h.ListObligations)
			r.Post("/", h.UpsertObligation)
		})

		// Accrual routes
		r.Route("/accruals", func(r chi.Router) {
			r.Post("/generate", h.GenerateAccruals)
		})

		// Payment routes
		r.Post("/receipts", h.RecordReceipt)
		r.Post("/expenses", h.RecordExpense)

		// Entry routes
		r.Route("/entries", func(r chi.Router) {
			r.Get("/", h.QueryEntries)
			r.Get("/{id}", h.GetEntry)
			r.Post("/{id}/reverse", h.ReverseEntry)
		})

		// Statement routes
		r.Route("/statements", func(r chi.Router) {
			r.Get("/income", h.GetIncomeStatement)
			r.Get("/balance-sheet", h.GetBalanceSheet)
			r.Get("/cash-flow", h.GetCashFlow)
		})

		// Arrears routes
		r.Route("/arrears", func(r chi.Router) {
			r.Get("/tenants/{id}", h.GetTenantArrears)
			r.Get("/properties/{id}", h.GetPropertyArrears)
			r.Get("/portfolio", h.GetPortfolioArrears)
		})

		// Account routes
		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.ListAccounts)
			r.Get("/{code}/balance", h.GetAccountBalance)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Post("/adjustments", h.CreateAdjustment)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})
	})

	// Landing page with endpoint index
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<!DOCTYPE html>
<html>
<head><title>Rent Ledger Engine</title></head>
<body style="font-family: system-ui; max-width: 800px; margin: 50px auto; padding: 20px;">
<h1>Rent Ledger Engine API</h1>
<h2>API Endpoints</h2>
<ul>
<li><a href="/api/obligations">/api/obligations</a> - List rent obligations</li>
<li><a href="/api/accounts">/api/accounts</a> - Chart of accounts</li>
<li><a href="/api/entries">/api/entries</a> - Posted ledger entries</li>
<li><a href="/api/arrears/portfolio">/api/arrears/portfolio</a> - Portfolio arrears</li>
<li><a href="/api/scenarios">/api/scenarios</a> - Demo scenarios</li>
</ul>
</body>
</html>`))
	})

	return r
}
