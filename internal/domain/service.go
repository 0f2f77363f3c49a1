package domain

import (
	"fmt"
	"strings"
	"time"
)

// ServiceRole — роль удалённого микросервиса в flow.
type ServiceRole string

const (
	RoleEmbedding   ServiceRole = "EMBEDDING"
	RoleLLM         ServiceRole = "LLM"
	RoleReranker    ServiceRole = "RERANKER"
	RoleRetriever   ServiceRole = "RETRIEVER"
	RoleGuardrail   ServiceRole = "GUARDRAIL"
	RoleDataprep    ServiceRole = "DATAPREP"
	RoleMegaservice ServiceRole = "MEGASERVICE"
	RoleUndefined   ServiceRole = "UNDEFINED"
)

// ParseServiceRole парсит строку в ServiceRole (регистр не важен).
// Неизвестные значения дают RoleUndefined.
func ParseServiceRole(s string) ServiceRole {
	switch role := ServiceRole(strings.ToUpper(strings.TrimSpace(s))); role {
	case RoleEmbedding, RoleLLM, RoleReranker, RoleRetriever,
		RoleGuardrail, RoleDataprep, RoleMegaservice:
		return role
	default:
		return RoleUndefined
	}
}

// String возвращает строковое представление ServiceRole.
func (r ServiceRole) String() string {
	return string(r)
}

// DefaultInputs — входные поля, которые узел требует, если Inputs не задан.
var DefaultInputs = []string{"text"}

// ServiceDescriptor — метаданные одного удалённого микросервиса.
//
// Descriptor неизменяем после регистрации в FlowGraph:
// граф хранит собственную копию.
type ServiceDescriptor struct {
	// Name — уникальное имя узла в рамках FlowGraph.
	Name string `json:"name" yaml:"name"`

	// Host — сетевой адрес сервиса.
	Host string `json:"host" yaml:"host"`

	// Port — порт сервиса.
	Port int `json:"port" yaml:"port"`

	// Endpoint — путь endpoint'а (например, "/v1/embeddings").
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Role — роль сервиса (EMBEDDING, LLM, ...).
	Role ServiceRole `json:"role" yaml:"role"`

	// IsRemote — сервис вызывается по сети.
	IsRemote bool `json:"is_remote" yaml:"is_remote"`

	// SupportsStreaming — сервис умеет отдавать потоковый ответ.
	SupportsStreaming bool `json:"supports_streaming" yaml:"supports_streaming"`

	// Inputs — имена полей, которые узел требует на входе.
	// Nil — используется DefaultInputs; пустой срез — узел принимает что угодно.
	Inputs []string `json:"inputs,omitempty" yaml:"inputs,omitempty"`

	// Timeout — таймаут вызова. 0 — таймаут Invoker'а по умолчанию.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Retry — политика повторных попыток при недоступности сервиса.
	Retry *RetryPolicy `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// URL возвращает полный адрес endpoint'а сервиса.
func (d ServiceDescriptor) URL() string {
	endpoint := d.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	host := d.Host
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	if d.Port > 0 {
		return fmt.Sprintf("%s:%d%s", host, d.Port, endpoint)
	}
	return host + endpoint
}

// RequiredInputs возвращает поля, которые узел требует на входе.
func (d ServiceDescriptor) RequiredInputs() []string {
	if d.Inputs == nil {
		return DefaultInputs
	}
	return d.Inputs
}

// Clone возвращает глубокую копию descriptor'а.
func (d ServiceDescriptor) Clone() ServiceDescriptor {
	c := d
	if d.Inputs != nil {
		c.Inputs = append([]string{}, d.Inputs...)
	}
	if d.Retry != nil {
		retry := *d.Retry
		retry.OnStatus = append([]int(nil), d.Retry.OnStatus...)
		c.Retry = &retry
	}
	return c
}

// RetryPolicy — политика повторных попыток.
type RetryPolicy struct {
	// MaxAttempts — максимальное количество попыток (включая первую).
	MaxAttempts int `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`

	// Backoff — стратегия задержки: "fixed", "exponential".
	Backoff string `json:"backoff,omitempty" yaml:"backoff,omitempty"`

	// InitialDelayMs — начальная задержка в миллисекундах.
	InitialDelayMs int `json:"initial_delay_ms,omitempty" yaml:"initial_delay_ms,omitempty"`

	// MaxDelayMs — максимальная задержка в миллисекундах.
	MaxDelayMs int `json:"max_delay_ms,omitempty" yaml:"max_delay_ms,omitempty"`

	// OnStatus — HTTP статусы, при которых делать retry.
	OnStatus []int `json:"on_status,omitempty" yaml:"on_status,omitempty"`
}
