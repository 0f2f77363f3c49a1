package engine

import (
	"errors"
	"fmt"
)

// Ошибки построения графа. Все они фатальны: конфигурация с такой
// ошибкой не должна дойти до обслуживания запросов.
var (
	// ErrDuplicateNode — узел с таким именем уже добавлен.
	ErrDuplicateNode = errors.New("duplicate node")

	// ErrUnknownNode — ребро ссылается на несуществующий узел.
	ErrUnknownNode = errors.New("unknown node")

	// ErrCycle — ребро создало бы цикл.
	ErrCycle = errors.New("cycle detected")

	// ErrEmptyNodeName — узел без имени.
	ErrEmptyNodeName = errors.New("node has empty name")

	// ErrEmptyGraph — граф не содержит узлов.
	ErrEmptyGraph = errors.New("flow graph has no nodes")

	// ErrNoRoot — в графе нет узлов без входящих рёбер.
	ErrNoRoot = errors.New("flow graph has no root")

	// ErrNoLeaf — в графе нет узлов без исходящих рёбер.
	ErrNoLeaf = errors.New("flow graph has no leaf")
)

// Ошибки разбора FlowSpec.
var (
	// ErrInvalidSpec — FlowSpec не удалось разобрать.
	ErrInvalidSpec = errors.New("invalid flow spec")

	// ErrEmptyServices — FlowSpec не содержит сервисов.
	ErrEmptyServices = errors.New("flow spec has no services")
)

// DuplicateNodeError — попытка добавить узел с уже занятым именем.
type DuplicateNodeError struct {
	Name string
}

// Error реализует интерфейс error.
func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.Name, ErrDuplicateNode)
}

// Unwrap возвращает базовую ошибку.
func (e *DuplicateNodeError) Unwrap() error {
	return ErrDuplicateNode
}

// UnknownNodeError — ребро ссылается на узел, которого нет в графе.
type UnknownNodeError struct {
	Name string
}

// Error реализует интерфейс error.
func (e *UnknownNodeError) Error() string {
	return fmt.Sprintf("node %q: %v", e.Name, ErrUnknownNode)
}

// Unwrap возвращает базовую ошибку.
func (e *UnknownNodeError) Unwrap() error {
	return ErrUnknownNode
}

// CycleError — ребро From → To замкнуло бы цикл.
type CycleError struct {
	From string
	To   string
}

// Error реализует интерфейс error.
func (e *CycleError) Error() string {
	return fmt.Sprintf("edge %s -> %s: %v", e.From, e.To, ErrCycle)
}

// Unwrap возвращает базовую ошибку.
func (e *CycleError) Unwrap() error {
	return ErrCycle
}

// SpecError — ошибка разбора FlowSpec с контекстом.
type SpecError struct {
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *SpecError) Error() string {
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *SpecError) Unwrap() error {
	return e.Err
}

// NewSpecError создаёт новую ошибку разбора.
func NewSpecError(field, message string, err error) *SpecError {
	return &SpecError{
		Field:   field,
		Message: message,
		Err:     err,
	}
}
