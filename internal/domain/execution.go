package domain

import (
	"time"

	"github.com/google/uuid"
)

// Execution — запись об обработке одного входящего запроса.
//
// Создаётся оркестратором после сборки ответа и передаётся
// в Recorder (история в БД, события в очередь).
type Execution struct {
	// ID — уникальный идентификатор обработки.
	ID uuid.UUID `json:"id"`

	// Model — идентификатор модели в ответе.
	Model string `json:"model"`

	// Status — итоговый статус обработки.
	Status ExecutionStatus `json:"status"`

	// Streamed — ответ отдан потоком.
	Streamed bool `json:"streamed"`

	// Nodes — результаты по каждому узлу графа.
	Nodes []NodeRecord `json:"nodes,omitempty"`

	// Error — текст ошибки для FAILED.
	Error string `json:"error,omitempty"`

	// StartedAt, FinishedAt — границы обработки.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration возвращает продолжительность обработки.
func (e *Execution) Duration() time.Duration {
	if e.FinishedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// NodeRecord — результат одного узла в рамках Execution.
type NodeRecord struct {
	Name     string        `json:"name"`
	Status   NodeStatus    `json:"status"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// NewExecution создаёт Execution в статусе RUNNING.
func NewExecution(model string) *Execution {
	return &Execution{
		ID:        uuid.New(),
		Model:     model,
		Status:    ExecutionStatusRunning,
		StartedAt: time.Now(),
	}
}

// Finish фиксирует итоговый статус.
func (e *Execution) Finish(status ExecutionStatus, errMsg string) {
	e.Status = status
	e.Error = errMsg
	e.FinishedAt = time.Now()
}
