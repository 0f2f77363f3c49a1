package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/megaflow/internal/domain"
	"github.com/shaiso/megaflow/internal/engine"
)

// Graph DTOs

// NodeResponse — узел графа.
type NodeResponse struct {
	Name      string             `json:"name"`
	Role      domain.ServiceRole `json:"role"`
	URL       string             `json:"url"`
	Streaming bool               `json:"streaming"`
	Inputs    []string           `json:"inputs"`
	DependsOn []string           `json:"depends_on,omitempty"`
}

// GraphResponse — топология графа.
type GraphResponse struct {
	Nodes   []NodeResponse `json:"nodes"`
	Edges   []engine.Edge  `json:"edges"`
	Roots   []string       `json:"roots"`
	Leaves  []string       `json:"leaves"`
	Primary string         `json:"primary,omitempty"`
}

// GraphFromEngine конвертирует FlowGraph в GraphResponse.
func GraphFromEngine(g *engine.FlowGraph) GraphResponse {
	resp := GraphResponse{
		Nodes:   make([]NodeResponse, 0, g.Len()),
		Edges:   g.Edges(),
		Roots:   nodeNames(g.Roots()),
		Leaves:  nodeNames(g.Leaves()),
		Primary: g.Primary(),
	}

	for _, node := range g.Nodes() {
		resp.Nodes = append(resp.Nodes, NodeResponse{
			Name:      node.Name(),
			Role:      node.Service.Role,
			URL:       node.Service.URL(),
			Streaming: node.Service.SupportsStreaming,
			Inputs:    node.Service.RequiredInputs(),
			DependsOn: g.Predecessors(node.Name()),
		})
	}

	return resp
}

func nodeNames(nodes []*engine.Node) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name()
	}
	return names
}

// HealthResponse — ответ /healthz.
type HealthResponse struct {
	Status string `json:"status"`
	Nodes  int    `json:"nodes"`
}

// Execution DTOs

// NodeRecordResponse — результат узла.
type NodeRecordResponse struct {
	Name       string            `json:"name"`
	Status     domain.NodeStatus `json:"status"`
	Error      string            `json:"error,omitempty"`
	DurationMs int64             `json:"duration_ms"`
}

// ExecutionResponse — ответ с execution.
type ExecutionResponse struct {
	ID         uuid.UUID              `json:"id"`
	Model      string                 `json:"model"`
	Status     domain.ExecutionStatus `json:"status"`
	Streamed   bool                   `json:"streamed"`
	Nodes      []NodeRecordResponse   `json:"nodes,omitempty"`
	Error      string                 `json:"error,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
	DurationMs int64                  `json:"duration_ms"`
}

// ExecutionFromDomain конвертирует domain.Execution в ExecutionResponse.
func ExecutionFromDomain(e domain.Execution) ExecutionResponse {
	resp := ExecutionResponse{
		ID:         e.ID,
		Model:      e.Model,
		Status:     e.Status,
		Streamed:   e.Streamed,
		Error:      e.Error,
		StartedAt:  e.StartedAt,
		DurationMs: e.Duration().Milliseconds(),
	}

	if !e.FinishedAt.IsZero() {
		finished := e.FinishedAt
		resp.FinishedAt = &finished
	}

	for _, n := range e.Nodes {
		resp.Nodes = append(resp.Nodes, NodeRecordResponse{
			Name:       n.Name,
			Status:     n.Status,
			Error:      n.Error,
			DurationMs: n.Duration.Milliseconds(),
		})
	}

	return resp
}
