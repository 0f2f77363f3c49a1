package engine

import (
	"bytes"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/megaflow/internal/domain"
)

// FlowSpec — описание топологии flow в файле конфигурации (YAML или JSON).
//
//	name: chatqna
//	primary: llm
//	services:
//	  - name: embedding
//	    host: 0.0.0.0
//	    port: 7000
//	    endpoint: /v1/embeddings
//	    role: embedding
//	  - name: llm
//	    host: 0.0.0.0
//	    port: 9000
//	    endpoint: /v1/chat/completions
//	    role: llm
//	    streaming: true
//	edges:
//	  - {from: embedding, to: llm}
type FlowSpec struct {
	// Name — имя flow (для логов и /v1/graph).
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Primary — узел, чей результат считается основным ответом.
	Primary string `json:"primary,omitempty" yaml:"primary,omitempty"`

	// Services — узлы графа в порядке добавления.
	Services []ServiceSpec `json:"services" yaml:"services"`

	// Edges — рёбра графа.
	Edges []Edge `json:"edges,omitempty" yaml:"edges,omitempty"`
}

// ServiceSpec — описание одного сервиса в FlowSpec.
type ServiceSpec struct {
	Name       string              `json:"name" yaml:"name"`
	Host       string              `json:"host" yaml:"host"`
	Port       int                 `json:"port" yaml:"port"`
	Endpoint   string              `json:"endpoint" yaml:"endpoint"`
	Role       string              `json:"role,omitempty" yaml:"role,omitempty"`
	Local      bool                `json:"local,omitempty" yaml:"local,omitempty"`
	Streaming  bool                `json:"streaming,omitempty" yaml:"streaming,omitempty"`
	Inputs     []string            `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	TimeoutSec int                 `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`
	Retry      *domain.RetryPolicy `json:"retry,omitempty" yaml:"retry,omitempty"`
}

// Descriptor преобразует ServiceSpec в ServiceDescriptor.
func (s ServiceSpec) Descriptor() domain.ServiceDescriptor {
	return domain.ServiceDescriptor{
		Name:              s.Name,
		Host:              s.Host,
		Port:              s.Port,
		Endpoint:          s.Endpoint,
		Role:              domain.ParseServiceRole(s.Role),
		IsRemote:          !s.Local,
		SupportsStreaming: s.Streaming,
		Inputs:            s.Inputs,
		Timeout:           time.Duration(s.TimeoutSec) * time.Second,
		Retry:             s.Retry,
	}
}

// ParseFlowSpec разбирает FlowSpec из YAML или JSON
// (JSON — подмножество YAML, поэтому разбор общий).
func ParseFlowSpec(data []byte) (*FlowSpec, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, NewSpecError("", "empty flow spec", ErrInvalidSpec)
	}

	var spec FlowSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return nil, NewSpecError("", err.Error(), ErrInvalidSpec)
	}

	if len(spec.Services) == 0 {
		return nil, NewSpecError("services", "flow spec has no services", ErrEmptyServices)
	}

	for i, svc := range spec.Services {
		if svc.Name == "" {
			return nil, NewSpecError(fmt.Sprintf("services[%d].name", i),
				"service has empty name", ErrEmptyNodeName)
		}
		if svc.Host == "" {
			return nil, NewSpecError(fmt.Sprintf("services[%d].host", i),
				fmt.Sprintf("service %s has empty host", svc.Name), ErrInvalidSpec)
		}
		if svc.Port < 0 || svc.Port > 65535 {
			return nil, NewSpecError(fmt.Sprintf("services[%d].port", i),
				fmt.Sprintf("service %s has invalid port %d", svc.Name, svc.Port), ErrInvalidSpec)
		}
	}

	return &spec, nil
}

// BuildGraph строит FlowGraph из FlowSpec.
//
// Ошибки AddNode/Connect возвращаются как есть
// (DuplicateNodeError, UnknownNodeError, CycleError).
func BuildGraph(spec *FlowSpec) (*FlowGraph, error) {
	if spec == nil || len(spec.Services) == 0 {
		return nil, ErrEmptyServices
	}

	g := NewFlowGraph()

	// Первый проход: узлы
	for _, svc := range spec.Services {
		if err := g.AddNode(svc.Descriptor()); err != nil {
			return nil, err
		}
	}

	// Второй проход: рёбра
	for _, edge := range spec.Edges {
		if err := g.Connect(edge.From, edge.To); err != nil {
			return nil, err
		}
	}

	if spec.Primary != "" {
		if err := g.SetPrimary(spec.Primary); err != nil {
			return nil, err
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	return g, nil
}
