package invoker

import "errors"

// Ошибки вызова сервиса.
var (
	// ErrUnreachable — сервис недоступен (соединение, таймаут).
	ErrUnreachable = errors.New("service unreachable")

	// ErrRemoteRejected — сервис ответил не 2xx.
	ErrRemoteRejected = errors.New("service rejected request")

	// ErrTimeout — вызов превысил таймаут.
	ErrTimeout = errors.New("invocation timeout")

	// ErrInvalidPayload — payload не сериализуется в JSON.
	ErrInvalidPayload = errors.New("invalid payload")
)
