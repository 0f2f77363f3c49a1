// megaflow-server — HTTP-шлюз, который прогоняет chat-запрос
// через граф удалённых микросервисов и отдаёт ответ клиенту.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/megaflow/internal/api"
	"github.com/shaiso/megaflow/internal/config"
	"github.com/shaiso/megaflow/internal/invoker"
	"github.com/shaiso/megaflow/internal/mq"
	"github.com/shaiso/megaflow/internal/orchestrator"
	"github.com/shaiso/megaflow/internal/repo"
	"github.com/shaiso/megaflow/internal/telemetry"
)

const serviceName = "megaflow-server"

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger(serviceName)
	logger.Info("starting megaflow-server")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	shutdownTracing, err := telemetry.SetupTracing(serviceName, cfg.TraceOutput)
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}

	// Граф сервисов
	flow, err := cfg.Flow()
	if err != nil {
		logger.Error("failed to build service graph", "error", err, "flow_file", cfg.FlowFile)
		os.Exit(1)
	}
	logger.Info("service graph ready", "nodes", flow.Len(), "primary", flow.Primary())

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	inv := invoker.NewHTTPInvoker(invoker.Config{
		Timeout: cfg.InvokeTimeout,
		Logger:  logger,
	})
	defer inv.Close()

	// История выполнений (опционально)
	var recorders orchestrator.Recorders
	var executions api.ExecutionStore

	if cfg.DatabaseURL != "" {
		pool, err := repo.NewPool(context.Background(), repo.PoolConfig{URL: cfg.DatabaseURL})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		executionRepo := repo.NewExecutionRepo(pool)
		if err := executionRepo.EnsureSchema(context.Background()); err != nil {
			logger.Error("failed to prepare database schema", "error", err)
			os.Exit(1)
		}

		recorders = append(recorders, executionRepo)
		executions = executionRepo
		logger.Info("connected to database")
	}

	// События execution.completed (опционально)
	if cfg.AMQPURL != "" {
		conn, err := mq.NewConnection(mq.ConnectionConfig{URL: cfg.AMQPURL, Logger: logger})
		if err != nil {
			logger.Error("failed to connect to RabbitMQ", "error", err)
			os.Exit(1)
		}
		defer conn.Close()

		if err := mq.SetupTopology(context.Background(), conn); err != nil {
			logger.Error("failed to set up RabbitMQ topology", "error", err)
			os.Exit(1)
		}

		recorders = append(recorders, mq.NewPublisher(conn, logger))
		logger.Info("connected to RabbitMQ", "topology", mq.TopologyInfo())
	}

	orch := orchestrator.New(orchestrator.Config{
		Invoker:        inv,
		Model:          cfg.Model,
		MaxConcurrency: cfg.MaxConcurrency,
		Recorder:       recorders,
		Logger:         logger,
		Metrics:        metrics,
	})
	if err := orch.Load(flow); err != nil {
		logger.Error("failed to load service graph", "error", err)
		os.Exit(1)
	}

	handler := api.NewHandler(api.Config{
		Chat:       orch,
		Executions: executions,
		Logger:     logger,
		Metrics:    metrics,
	})

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	// Без WriteTimeout: потоковые ответы длятся дольше любого разумного лимита
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Ожидаем сигнал завершения
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	// Дописываем Execution до закрытия БД и брокера
	if err := orch.Shutdown(shutdownCtx); err != nil {
		logger.Error("pending executions not recorded", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}

	logger.Info("stopped")
}
