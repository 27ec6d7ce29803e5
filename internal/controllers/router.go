package controllers

import (
	"net/http"

	"github.com/RealZimboGuy/shipflow/internal/metrics"
)

// RegisterRoutes wires the HTTP routes for this controller.
func (c *AuthController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/login", c.handleLogin)
	mux.HandleFunc("POST /api/logout", c.handleLogout)
}

func (c *ShipmentsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/shipments", c.RequireAuth(c.handleCreateShipment))
	mux.HandleFunc("GET /api/shipments/{id}", c.RequireAuth(c.handleGetShipment))
	mux.HandleFunc("DELETE /api/shipments/{id}", c.RequireAuth(c.handleDeleteShipment))
}

func (c *WorkflowsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/workflows/shipment/{id}", c.RequireAuth(c.handleGetProgress))
	mux.HandleFunc("POST /api/workflows/shipment/{id}/advance", c.RequireAuth(c.handleAdvance))
	mux.HandleFunc("GET /api/workflows/shipment/{id}/events", c.RequireAuth(c.handleGetEvents))
}

func (c *JobsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/jobs", c.RequireAuth(c.handleListJobs))
	mux.HandleFunc("POST /api/jobs/{id}/retry", c.RequireAuth(c.handleRetryJob))
}

func (c *StepsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/steps", c.RequireAuth(c.handleListSteps))
	mux.HandleFunc("GET /api/steps/flowchart", c.RequireAuth(c.handleFlowchart))
}

func (c *DashboardController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/dashboard/stats", c.RequireAuth(c.handleStats))
}

type routeRegistrar interface {
	RegisterRoutes(mux *http.ServeMux)
}

// NewRouter registers every controller plus /metrics and /healthz, and wraps
// the API in the request metrics middleware.
func NewRouter(m *metrics.Metrics, controllers ...routeRegistrar) http.Handler {
	api := http.NewServeMux()
	for _, c := range controllers {
		c.RegisterRoutes(api)
	}

	root := http.NewServeMux()
	root.Handle("/api/", m.Middleware("api", api))
	root.Handle("GET /metrics", m.Handler())
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return root
}
