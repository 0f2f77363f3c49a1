package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/megaflow/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

var executionsSchema = []string{
	`CREATE TABLE IF NOT EXISTS executions (
		id          UUID PRIMARY KEY,
		model       TEXT NOT NULL,
		status      TEXT NOT NULL,
		streamed    BOOLEAN NOT NULL DEFAULT FALSE,
		nodes       JSONB,
		error       TEXT,
		started_at  TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS executions_started_at_idx ON executions (started_at DESC)`,
	`CREATE INDEX IF NOT EXISTS executions_status_idx ON executions (status)`,
}

// ExecutionRepo — репозиторий истории выполнений.
//
// Реализует orchestrator.Recorder через RecordExecution.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

// EnsureSchema создаёт таблицу executions, если её нет.
func (r *ExecutionRepo) EnsureSchema(ctx context.Context) error {
	for _, stmt := range executionsSchema {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure executions schema: %w", err)
		}
	}
	return nil
}

// Save сохраняет execution. Повторное сохранение перезаписывает запись.
func (r *ExecutionRepo) Save(ctx context.Context, exec *domain.Execution) error {
	nodesJSON, err := json.Marshal(exec.Nodes)
	if err != nil {
		return fmt.Errorf("marshal nodes: %w", err)
	}

	query := `
		INSERT INTO executions (id, model, status, streamed, nodes, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    streamed = EXCLUDED.streamed,
		    nodes = EXCLUDED.nodes,
		    error = EXCLUDED.error,
		    finished_at = EXCLUDED.finished_at
	`
	_, err = r.pool.Exec(ctx, query,
		exec.ID,
		exec.Model,
		exec.Status,
		exec.Streamed,
		nodesJSON,
		nullString(exec.Error),
		exec.StartedAt,
		nullTime(exec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// RecordExecution сохраняет execution после обработки запроса.
func (r *ExecutionRepo) RecordExecution(ctx context.Context, exec *domain.Execution) error {
	return r.Save(ctx, exec)
}

// GetByID возвращает execution по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	query := `
		SELECT id, model, status, streamed, nodes, error, started_at, finished_at
		FROM executions
		WHERE id = $1
	`
	exec, err := scanExecution(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return exec, err
}

// List возвращает выполнения, начиная с самых новых.
func (r *ExecutionRepo) List(ctx context.Context, filter ExecutionFilter) ([]domain.Execution, error) {
	filter = filter.normalize()

	query := `
		SELECT id, model, status, streamed, nodes, error, started_at, finished_at
		FROM executions
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var executions []domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *exec)
	}
	return executions, rows.Err()
}

// --- Helpers ---

// ExecutionFilter — параметры фильтрации executions.
type ExecutionFilter struct {
	Status domain.ExecutionStatus
	Limit  int
	Offset int
}

// normalize подставляет значения по умолчанию.
func (f ExecutionFilter) normalize() ExecutionFilter {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// scanExecution сканирует строку в Execution. pgx.Rows тоже реализует pgx.Row.
func scanExecution(row pgx.Row) (*domain.Execution, error) {
	var exec domain.Execution
	var nodesJSON []byte
	var execError *string
	var finishedAt *time.Time

	err := row.Scan(
		&exec.ID,
		&exec.Model,
		&exec.Status,
		&exec.Streamed,
		&nodesJSON,
		&execError,
		&exec.StartedAt,
		&finishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	if nodesJSON != nil {
		if err := json.Unmarshal(nodesJSON, &exec.Nodes); err != nil {
			return nil, fmt.Errorf("unmarshal nodes: %w", err)
		}
	}
	if execError != nil {
		exec.Error = *execError
	}
	if finishedAt != nil {
		exec.FinishedAt = *finishedAt
	}

	return &exec, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullTime возвращает nil для нулевого времени.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
