package api

import "net/http"

// GetGraph возвращает топологию графа сервисов.
// GET /v1/graph
func (h *Handler) GetGraph(w http.ResponseWriter, r *http.Request) {
	Success(w, GraphFromEngine(h.chat.Graph()))
}

// Healthz — проверка живости.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, HealthResponse{Status: "ok", Nodes: h.chat.Graph().Len()})
}
