package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/megaflow/internal/domain"
	"github.com/shaiso/megaflow/internal/engine"
)

// Значения по умолчанию.
const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8888
	DefaultEmbeddingPort  = 7000
	DefaultLLMPort        = 9000
	DefaultInvokeTimeout  = 120 * time.Second
	DefaultMaxConcurrency = 0
)

// Config — конфигурация сервера, собранная из переменных окружения.
type Config struct {
	// Host, Port — адрес, на котором слушает megaservice.
	Host string
	Port int

	// EmbeddingHost, EmbeddingPort — адрес embedding-сервиса для графа по умолчанию.
	EmbeddingHost string
	EmbeddingPort int

	// LLMHost, LLMPort — адрес LLM-сервиса для графа по умолчанию.
	LLMHost      string
	LLMPort      int
	LLMStreaming bool

	// FlowFile — путь к YAML/JSON описанию графа. Пусто — граф по умолчанию.
	FlowFile string

	// Model — идентификатор модели в ответе.
	Model string

	// InvokeTimeout — таймаут вызова сервиса по умолчанию.
	InvokeTimeout time.Duration

	// MaxConcurrency — ограничение параллельных вызовов в одном запросе. 0 — без ограничения.
	MaxConcurrency int

	// DatabaseURL — PostgreSQL для истории выполнений. Пусто — история выключена.
	DatabaseURL string

	// AMQPURL — RabbitMQ для событий execution.completed. Пусто — события выключены.
	AMQPURL string

	// TraceOutput — "", "stdout" или путь к файлу для спанов.
	TraceOutput string
}

// Load читает конфигурацию из окружения.
func Load() (*Config, error) {
	cfg := &Config{
		Host:          getString("MEGASERVICE_HOST", DefaultHost),
		EmbeddingHost: getString("EMBEDDING_SERVICE_HOST_IP", DefaultHost),
		LLMHost:       getString("LLM_SERVICE_HOST_IP", DefaultHost),
		FlowFile:      os.Getenv("FLOW_FILE"),
		Model:         getString("MODEL_NAME", domain.DefaultModel),
		DatabaseURL:   os.Getenv("DB_URL"),
		AMQPURL:       os.Getenv("AMQP_URL"),
		TraceOutput:   os.Getenv("TRACE_OUTPUT"),
	}

	var err error
	if cfg.Port, err = getPort("MEGASERVICE_PORT", DefaultPort); err != nil {
		return nil, err
	}
	if cfg.EmbeddingPort, err = getPort("EMBEDDING_SERVICE_PORT", DefaultEmbeddingPort); err != nil {
		return nil, err
	}
	if cfg.LLMPort, err = getPort("LLM_SERVICE_PORT", DefaultLLMPort); err != nil {
		return nil, err
	}
	if cfg.LLMStreaming, err = getBool("LLM_STREAMING", false); err != nil {
		return nil, err
	}

	timeoutSec, err := getInt("INVOKE_TIMEOUT_SEC", int(DefaultInvokeTimeout/time.Second))
	if err != nil {
		return nil, err
	}
	if timeoutSec <= 0 {
		return nil, fmt.Errorf("%w: INVOKE_TIMEOUT_SEC must be positive, got %d", ErrInvalidValue, timeoutSec)
	}
	cfg.InvokeTimeout = time.Duration(timeoutSec) * time.Second

	if cfg.MaxConcurrency, err = getInt("MAX_CONCURRENCY", DefaultMaxConcurrency); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrency < 0 {
		return nil, fmt.Errorf("%w: MAX_CONCURRENCY must not be negative, got %d", ErrInvalidValue, cfg.MaxConcurrency)
	}

	return cfg, nil
}

// Addr возвращает адрес для http.Server.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Flow строит граф сервисов: из FlowFile, если он задан,
// иначе граф по умолчанию embedding → llm.
func (c *Config) Flow() (*engine.FlowGraph, error) {
	if c.FlowFile == "" {
		return c.defaultFlow()
	}

	data, err := os.ReadFile(c.FlowFile)
	if err != nil {
		return nil, fmt.Errorf("read flow file: %w", err)
	}

	spec, err := engine.ParseFlowSpec(data)
	if err != nil {
		return nil, fmt.Errorf("parse flow file %s: %w", c.FlowFile, err)
	}

	return engine.BuildGraph(spec)
}

// defaultFlow — двухузловой pipeline: embedding подаёт свой выход в llm.
func (c *Config) defaultFlow() (*engine.FlowGraph, error) {
	g := engine.NewFlowGraph()

	embedding := domain.ServiceDescriptor{
		Name:     "embedding",
		Host:     c.EmbeddingHost,
		Port:     c.EmbeddingPort,
		Endpoint: "/v1/embeddings",
		Role:     domain.RoleEmbedding,
		IsRemote: true,
	}
	llm := domain.ServiceDescriptor{
		Name:              "llm",
		Host:              c.LLMHost,
		Port:              c.LLMPort,
		Endpoint:          "/v1/chat/completions",
		Role:              domain.RoleLLM,
		IsRemote:          true,
		SupportsStreaming: c.LLMStreaming,
		Inputs:            []string{"text", "embedding"},
	}

	if err := g.AddNode(embedding); err != nil {
		return nil, err
	}
	if err := g.AddNode(llm); err != nil {
		return nil, err
	}
	if err := g.Connect(embedding.Name, llm.Name); err != nil {
		return nil, err
	}
	if err := g.SetPrimary(llm.Name); err != nil {
		return nil, err
	}

	return g, nil
}

// --- Helpers ---

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &EnvError{Key: key, Value: v, Err: err}
	}
	return n, nil
}

func getPort(key string, def int) (int, error) {
	port, err := getInt(key, def)
	if err != nil {
		return 0, err
	}
	if port <= 0 || port > 65535 {
		return 0, &EnvError{Key: key, Value: strconv.Itoa(port), Err: ErrInvalidValue}
	}
	return port, nil
}

func getBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &EnvError{Key: key, Value: v, Err: err}
	}
	return b, nil
}
