package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/megaflow/internal/domain"
	"github.com/shaiso/megaflow/internal/repo"
)

// ListExecutions возвращает историю выполнений.
// GET /v1/executions?status=...&limit=...&offset=...
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	if h.executions == nil {
		HistoryDisabled(w)
		return
	}

	filter := repo.ExecutionFilter{}
	query := r.URL.Query()

	if status := query.Get("status"); status != "" {
		filter.Status = domain.ExecutionStatus(status)
	}
	if v := query.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			InvalidQuery(w, "invalid limit")
			return
		}
		filter.Limit = limit
	}
	if v := query.Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil {
			InvalidQuery(w, "invalid offset")
			return
		}
		filter.Offset = offset
	}

	executions, err := h.executions.List(r.Context(), filter)
	if HandleExecutionError(w, h.logger, err) {
		return
	}

	result := make([]ExecutionResponse, len(executions))
	for i, exec := range executions {
		result[i] = ExecutionFromDomain(exec)
	}

	List(w, result, len(result))
}

// GetExecution возвращает одно выполнение.
// GET /v1/executions/{id}
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	if h.executions == nil {
		HistoryDisabled(w)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		InvalidQuery(w, "invalid execution id")
		return
	}

	exec, err := h.executions.GetByID(r.Context(), id)
	if HandleExecutionError(w, h.logger, err) {
		return
	}

	Success(w, ExecutionFromDomain(*exec))
}
