// Package httptransport assembles the HTTP router. It owns only wiring:
// middleware order, route mounting, and the operational endpoints.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	changehandler "civreg/internal/change/handler"
	contracthandler "civreg/internal/contract/handler"
	"civreg/internal/platform/metrics"
	"civreg/internal/platform/middleware"
)

// New builds the full middleware chain and mounts every endpoint. The token
// endpoint and the operational endpoints stay outside the authenticated group.
func New(change *changehandler.Handler, contract *contracthandler.Handler, auth func(http.Handler) http.Handler, httpMetrics *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	if httpMetrics != nil {
		r.Use(middleware.Instrument(httpMetrics))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	contract.Register(r)

	r.Group(func(r chi.Router) {
		r.Use(auth)
		change.Register(r)
	})

	return r
}
