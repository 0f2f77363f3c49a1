package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		Metrics(h.metrics),
	)

	// Chat
	mux.Handle("POST /v1/chat/completions", chain(http.HandlerFunc(h.ChatCompletions)))
	mux.Handle("POST /v1/examples", chain(http.HandlerFunc(h.ChatCompletions)))

	// Topology
	mux.Handle("GET /v1/graph", chain(http.HandlerFunc(h.GetGraph)))

	// Executions
	mux.Handle("GET /v1/executions", chain(http.HandlerFunc(h.ListExecutions)))
	mux.Handle("GET /v1/executions/{id}", chain(http.HandlerFunc(h.GetExecution)))

	// Health и metrics
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.Handle("GET /metrics", promhttp.Handler())
}
