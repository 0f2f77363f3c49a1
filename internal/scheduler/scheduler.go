package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/shaiso/megaflow/internal/domain"
	"github.com/shaiso/megaflow/internal/engine"
	"github.com/shaiso/megaflow/internal/invoker"
	"github.com/shaiso/megaflow/internal/telemetry"
)

// Result — результат одного обхода графа.
type Result struct {
	// Outcomes — результаты вызванных узлов. Пропущенных узлов здесь нет.
	Outcomes map[string]invoker.Outcome

	// Runtime — реально пройденный подграф.
	Runtime *engine.RuntimeGraph

	// Order — порядок завершения вызовов.
	Order []string

	// Statuses — итоговый статус каждого узла FlowGraph.
	Statuses map[string]domain.NodeStatus

	// Records — результаты узлов в топологическом порядке.
	Records []domain.NodeRecord
}

// Outcome возвращает результат узла.
func (r *Result) Outcome(name string) (invoker.Outcome, bool) {
	o, ok := r.Outcomes[name]
	return o, ok
}

// Scheduler обходит FlowGraph для одного запроса.
//
// Узел запускается, когда решены все его предшественники.
// Независимые узлы выполняются параллельно.
type Scheduler struct {
	graph   *engine.FlowGraph
	invoker invoker.Invoker
	sem     *semaphore.Weighted
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Config — конфигурация Scheduler.
type Config struct {
	Graph   *engine.FlowGraph
	Invoker invoker.Invoker

	// MaxConcurrency — ограничение одновременных вызовов (0 — без ограничения).
	MaxConcurrency int

	Logger  *slog.Logger
	Metrics *telemetry.Metrics // опционально
}

// New создаёт Scheduler.
func New(cfg Config) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var sem *semaphore.Weighted
	if cfg.MaxConcurrency > 0 {
		sem = semaphore.NewWeighted(int64(cfg.MaxConcurrency))
	}

	return &Scheduler{
		graph:   cfg.Graph,
		invoker: cfg.Invoker,
		sem:     sem,
		logger:  logger,
		metrics: cfg.Metrics,
	}
}

// Schedule выполняет граф для одного запроса.
//
// Ошибки вызовов не прерывают обход: они попадают в Result как Failed,
// а зависимые узлы пропускаются. Ошибка возвращается только для
// некорректного графа и при отмене ctx; в последнем случае все
// открытые потоки закрываются, а результаты отбрасываются.
func (s *Scheduler) Schedule(ctx context.Context, inputs map[string]any, params domain.LLMParams) (*Result, error) {
	if s.graph == nil {
		return nil, engine.ErrEmptyGraph
	}
	if err := s.graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flow graph: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "scheduler.schedule",
		attribute.Int("nodes", s.graph.Len()),
	)

	s.metrics.ScheduleStarted()
	defer s.metrics.ScheduleFinished()

	st := newExecutionState(s.graph, inputs, params)

	// Контекст errgroup не используется: он отменяется после Wait,
	// а открытые потоки должны пережить Schedule.
	var g errgroup.Group
	for _, root := range s.graph.Roots() {
		s.spawn(ctx, &g, st, root.Name())
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		if cerr := st.closeStreams(); cerr != nil {
			s.logger.Warn("failed to close streams after cancellation", "error", cerr)
		}
		telemetry.EndSpan(span, err)
		return nil, err
	}

	result := st.result()
	span.SetAttributes(attribute.Int("visited", result.Runtime.Len()))
	telemetry.EndSpan(span, nil)

	return result, nil
}

// spawn запускает обработку узла и, рекурсивно, его готовых последователей.
func (s *Scheduler) spawn(ctx context.Context, g *errgroup.Group, st *executionState, name string) {
	g.Go(func() error {
		for _, next := range s.process(ctx, st, name) {
			s.spawn(ctx, g, st, next)
		}
		return nil
	})
}

// process решает узел: пропускает его или вызывает сервис.
func (s *Scheduler) process(ctx context.Context, st *executionState, name string) []string {
	node := s.graph.Node(name)
	logger := telemetry.WithNode(s.logger, name)

	payload, reason := st.prepare(node)
	if reason == "" && ctx.Err() != nil {
		reason = "cancelled"
	}
	if reason != "" {
		logger.Debug("node skipped", "reason", reason)
		return st.skip(name, reason)
	}

	if s.sem != nil {
		if err := s.sem.Acquire(ctx, 1); err != nil {
			return st.skip(name, "cancelled")
		}
		defer s.sem.Release(1)
	}

	callCtx, span := telemetry.StartSpan(ctx, "invoke "+name,
		attribute.String("node", name),
		attribute.String("role", node.Service.Role.String()),
		attribute.String("url", node.Service.URL()),
	)

	logger.Debug("invoking service", "url", node.Service.URL())

	start := time.Now()
	outcome := s.invoke(callCtx, node.Service, payload)
	elapsed := time.Since(start)

	span.SetAttributes(attribute.String("outcome", string(outcome.Kind)))
	telemetry.EndSpan(span, outcome.Err)
	s.metrics.ObserveNode(name, strings.ToLower(string(outcome.Kind)), elapsed)

	if outcome.IsFailed() {
		logger.Warn("service call failed",
			"failure", outcome.Failure,
			"attempts", outcome.Attempts,
			"error", outcome.Err,
		)
	} else {
		logger.Debug("service call finished",
			"outcome", outcome.Kind,
			"duration", elapsed,
		)
	}

	return st.complete(name, outcome, elapsed)
}

// invoke вызывает Invoker, превращая панику в Failed.
func (s *Scheduler) invoke(ctx context.Context, desc domain.ServiceDescriptor, payload map[string]any) (outcome invoker.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("invoker panicked", "node", desc.Name, "panic", r)
			outcome = invoker.Failed(invoker.FailureInternal, fmt.Errorf("%w: %v", ErrInvokerPanic, r))
		}
	}()

	return s.invoker.Invoke(ctx, desc, payload)
}
