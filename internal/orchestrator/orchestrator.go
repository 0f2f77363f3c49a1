package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/shaiso/megaflow/internal/assembler"
	"github.com/shaiso/megaflow/internal/domain"
	"github.com/shaiso/megaflow/internal/engine"
	"github.com/shaiso/megaflow/internal/invoker"
	"github.com/shaiso/megaflow/internal/scheduler"
	"github.com/shaiso/megaflow/internal/telemetry"
)

// ErrorContentPrefix — префикс текста ответа при ошибке обработки.
const ErrorContentPrefix = "Error processing request: "

// DefaultRecordTimeout — ограничение на одну запись Execution.
const DefaultRecordTimeout = 5 * time.Second

// Orchestrator — фасад: граф сервисов, планировщик и сборка ответа.
//
// Граф наполняется через Add/Connect при старте процесса,
// после чего Orchestrator обслуживает запросы через Handle.
// Add и Connect не синхронизированы с Handle.
type Orchestrator struct {
	graph     *engine.FlowGraph
	scheduler *scheduler.Scheduler
	recorder  Recorder
	model     string
	logger    *slog.Logger
	metrics   *telemetry.Metrics

	// recordTimeout и recording — фоновая запись Execution.
	recordTimeout time.Duration
	recording     sync.WaitGroup
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Invoker — вызов удалённых сервисов (обязателен).
	Invoker invoker.Invoker

	// Model — значение model в ответах по умолчанию (default: "example-model").
	Model string

	// MaxConcurrency — ограничение одновременных вызовов на запрос (0 — без ограничения).
	MaxConcurrency int

	// Recorder — история и события выполнений (опционально).
	// Вызывается в фоне, ответ клиенту его не ждёт.
	Recorder Recorder

	// RecordTimeout — таймаут одной записи (default: 5s).
	RecordTimeout time.Duration

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// New создаёт Orchestrator с пустым графом.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	model := cfg.Model
	if model == "" {
		model = domain.DefaultModel
	}

	recordTimeout := cfg.RecordTimeout
	if recordTimeout <= 0 {
		recordTimeout = DefaultRecordTimeout
	}

	graph := engine.NewFlowGraph()

	return &Orchestrator{
		graph: graph,
		scheduler: scheduler.New(scheduler.Config{
			Graph:          graph,
			Invoker:        cfg.Invoker,
			MaxConcurrency: cfg.MaxConcurrency,
			Logger:         logger,
			Metrics:        cfg.Metrics,
		}),
		recorder:      cfg.Recorder,
		recordTimeout: recordTimeout,
		model:         model,
		logger:        logger,
		metrics:       cfg.Metrics,
	}
}

// Add добавляет сервис в граф.
func (o *Orchestrator) Add(desc domain.ServiceDescriptor) error {
	return o.graph.AddNode(desc)
}

// Connect добавляет ребро from → to.
func (o *Orchestrator) Connect(from, to string) error {
	return o.graph.Connect(from, to)
}

// SetPrimary задаёт узел, чей текст становится ответом.
func (o *Orchestrator) SetPrimary(name string) error {
	return o.graph.SetPrimary(name)
}

// Load переносит в граф все узлы и рёбра flow.
func (o *Orchestrator) Load(flow *engine.FlowGraph) error {
	for _, node := range flow.Nodes() {
		if err := o.Add(node.Service); err != nil {
			return err
		}
	}
	for _, edge := range flow.Edges() {
		if err := o.Connect(edge.From, edge.To); err != nil {
			return err
		}
	}
	if primary := flow.Primary(); primary != "" {
		return o.SetPrimary(primary)
	}
	return nil
}

// Graph возвращает граф сервисов.
func (o *Orchestrator) Graph() *engine.FlowGraph {
	return o.graph
}

// Model возвращает model ответов по умолчанию.
func (o *Orchestrator) Model() string {
	return o.model
}

// Schedule выполняет граф без сборки ответа.
func (o *Orchestrator) Schedule(ctx context.Context, inputs map[string]any, params domain.LLMParams) (*scheduler.Result, error) {
	return o.scheduler.Schedule(ctx, inputs, params)
}

// Handle обрабатывает chat-запрос и всегда возвращает ответ.
//
// Ошибки и паники не выходят наружу: клиент получает envelope с текстом
// "Error processing request: ...". Запрос без сообщений отклоняется
// без вызова сервисов.
func (o *Orchestrator) Handle(ctx context.Context, req *domain.ChatCompletionRequest) (reply assembler.Reply) {
	model := o.model
	if req != nil && req.Model != "" {
		model = req.Model
	}

	exec := domain.NewExecution(model)
	logger := telemetry.FromContext(ctx).With("execution_id", exec.ID.String())
	ctx = telemetry.WithLogger(ctx, logger)

	asm := assembler.New(assembler.Config{
		Model:   model,
		Primary: o.graph.Primary(),
		Logger:  logger,
	})

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling request",
				"panic", r,
				"stack", string(debug.Stack()),
			)
			reply = o.fail(asm, exec, fmt.Errorf("%w: %v", ErrPanic, r))
		}
		o.record(ctx, exec)
	}()

	if req == nil || len(req.Messages) == 0 {
		exec.Finish(domain.ExecutionStatusRejected, ErrNoMessages.Error())
		logger.Info("request rejected", "reason", ErrNoMessages)
		return asm.NoMessages()
	}

	params := domain.ParamsFromRequest(req)
	inputs := map[string]any{
		"messages": req.Messages,
		"text":     req.LastContent(),
	}

	result, err := o.Schedule(ctx, inputs, params)
	if err != nil {
		return o.fail(asm, exec, err)
	}
	exec.Nodes = result.Records

	reply = asm.Assemble(result)
	if reply.IsStream() {
		exec.Streamed = true
		exec.Finish(domain.ExecutionStatusStreaming, "")
	} else {
		exec.Finish(domain.ExecutionStatusSucceeded, "")
	}

	logger.Info("request handled",
		"status", exec.Status,
		"visited", result.Runtime.Len(),
		"duration", exec.Duration(),
	)

	return reply
}

// fail превращает ошибку в envelope.
func (o *Orchestrator) fail(asm *assembler.Assembler, exec *domain.Execution, err error) assembler.Reply {
	exec.Finish(domain.ExecutionStatusFailed, err.Error())
	o.logger.Error("request failed", "execution_id", exec.ID, "error", err)
	return asm.Text(ErrorContentPrefix + err.Error())
}

// record передаёт Execution в Recorder в отдельной горутине.
// Запись не зависит от отключения клиента и ограничена recordTimeout.
// Ошибки только логируются.
func (o *Orchestrator) record(ctx context.Context, exec *domain.Execution) {
	o.metrics.ObserveRequest(string(exec.Status))

	if o.recorder == nil {
		return
	}

	o.recording.Add(1)
	go func() {
		defer o.recording.Done()

		recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.recordTimeout)
		defer cancel()

		if err := o.recorder.RecordExecution(recCtx, exec); err != nil {
			o.logger.Warn("failed to record execution", "execution_id", exec.ID, "error", err)
		}
	}()
}

// Shutdown ждёт завершения фоновых записей или отмены ctx.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.recording.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
