package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/megaflow/internal/assembler"
	"github.com/shaiso/megaflow/internal/domain"
	"github.com/shaiso/megaflow/internal/engine"
	"github.com/shaiso/megaflow/internal/repo"
	"github.com/shaiso/megaflow/internal/telemetry"
)

// ChatService — то, что API требует от оркестратора.
type ChatService interface {
	Handle(ctx context.Context, req *domain.ChatCompletionRequest) assembler.Reply
	Graph() *engine.FlowGraph
}

// ExecutionStore — чтение истории выполнений.
type ExecutionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error)
	List(ctx context.Context, filter repo.ExecutionFilter) ([]domain.Execution, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	chat       ChatService
	executions ExecutionStore
	logger     *slog.Logger
	metrics    *telemetry.Metrics
}

// Config — конфигурация для создания Handler.
type Config struct {
	Chat ChatService

	// Executions — история выполнений (опционально, без неё /v1/executions отвечает 404).
	Executions ExecutionStore

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		chat:       cfg.Chat,
		executions: cfg.Executions,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}
