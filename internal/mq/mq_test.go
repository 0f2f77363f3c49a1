package mq

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/megaflow/internal/domain"
)

func TestNewExecutionCompletedPayload(t *testing.T) {
	exec := domain.NewExecution("example-model")
	exec.Nodes = []domain.NodeRecord{{Name: "llm", Status: domain.NodeStatusSucceeded}}
	exec.FinishedAt = exec.StartedAt.Add(1500 * time.Millisecond)
	exec.Status = domain.ExecutionStatusSucceeded

	p := NewExecutionCompletedPayload(exec)

	if p.ExecutionID != exec.ID || p.Model != "example-model" {
		t.Errorf("unexpected identity: %+v", p)
	}
	if p.DurationMs != 1500 {
		t.Errorf("expected 1500ms, got %d", p.DurationMs)
	}
	if len(p.Nodes) != 1 || p.Nodes[0].Name != "llm" {
		t.Errorf("unexpected nodes: %+v", p.Nodes)
	}
}

func TestParsePayload(t *testing.T) {
	id := uuid.New()
	original := Message{
		ID:   uuid.NewString(),
		Type: MessageTypeExecutionCompleted,
		Payload: ExecutionCompletedPayload{
			ExecutionID: id,
			Status:      domain.ExecutionStatusStreaming,
			Streamed:    true,
		},
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// Как в Consumer: конверт разбирается, payload становится map
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	payload, err := ParsePayload[ExecutionCompletedPayload](&msg)
	if err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.ExecutionID != id || payload.Status != domain.ExecutionStatusStreaming || !payload.Streamed {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestParsePayload_TypeMismatch(t *testing.T) {
	msg := &Message{Payload: map[string]any{"execution_id": 42}}
	if _, err := ParsePayload[ExecutionCompletedPayload](msg); err == nil {
		t.Error("expected error for mismatched payload")
	}
}

func TestExecutionsQueueArgs_Bounded(t *testing.T) {
	args := executionsQueueArgs()

	if err := args.Validate(); err != nil {
		t.Fatalf("invalid amqp table: %v", err)
	}
	if got, ok := args["x-max-length"].(int32); !ok || got != ExecutionsQueueMaxLength {
		t.Errorf("expected x-max-length %d, got %v", ExecutionsQueueMaxLength, args["x-max-length"])
	}
	if got, ok := args["x-message-ttl"].(int32); !ok || got != 86_400_000 {
		t.Errorf("expected x-message-ttl 86400000, got %v", args["x-message-ttl"])
	}
	if args["x-overflow"] != "drop-head" {
		t.Errorf("expected drop-head overflow, got %v", args["x-overflow"])
	}
}
