package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrNoMessages — в запросе нет ни одного сообщения.
	ErrNoMessages = errors.New("no messages provided")

	// ErrPanic — паника при обработке запроса.
	ErrPanic = errors.New("panic while handling request")
)
