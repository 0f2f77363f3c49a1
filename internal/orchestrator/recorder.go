package orchestrator

import (
	"context"
	"errors"

	"github.com/shaiso/megaflow/internal/domain"
)

// Recorder получает Execution после обработки каждого запроса.
type Recorder interface {
	RecordExecution(ctx context.Context, exec *domain.Execution) error
}

// RecorderFunc — адаптер функции к Recorder.
type RecorderFunc func(ctx context.Context, exec *domain.Execution) error

func (f RecorderFunc) RecordExecution(ctx context.Context, exec *domain.Execution) error {
	return f(ctx, exec)
}

// Recorders передаёт Execution каждому Recorder по очереди.
// Ошибка одного не мешает остальным.
type Recorders []Recorder

func (rs Recorders) RecordExecution(ctx context.Context, exec *domain.Execution) error {
	var errs []error
	for _, r := range rs {
		if r == nil {
			continue
		}
		if err := r.RecordExecution(ctx, exec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
