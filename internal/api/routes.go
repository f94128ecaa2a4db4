package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes mounts the API on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	mux.Handle("POST /v1/jobs", chain(http.HandlerFunc(h.CreateJob)))
	mux.Handle("GET /v1/jobs", chain(http.HandlerFunc(h.ListJobs)))
	mux.Handle("GET /v1/jobs/{id}", chain(http.HandlerFunc(h.GetJob)))

	mux.HandleFunc("GET /healthz", h.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
}
