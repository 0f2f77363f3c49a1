package domain

// ExecutionStatus — статус обработки запроса.
//
// Жизненный цикл:
//
//	RUNNING → SUCCEEDED
//	        ↘ STREAMING (ответ отдан потоком)
//	        ↘ FAILED
//	        ↘ REJECTED (запрос без сообщений)
type ExecutionStatus string

const (
	// ExecutionStatusRunning — запрос обрабатывается.
	ExecutionStatusRunning ExecutionStatus = "RUNNING"

	// ExecutionStatusSucceeded — собран полный ответ.
	ExecutionStatusSucceeded ExecutionStatus = "SUCCEEDED"

	// ExecutionStatusStreaming — клиенту отдан поток одного из узлов.
	ExecutionStatusStreaming ExecutionStatus = "STREAMING"

	// ExecutionStatusFailed — ошибка в pipeline, клиент получил текст ошибки.
	ExecutionStatusFailed ExecutionStatus = "FAILED"

	// ExecutionStatusRejected — запрос без сообщений, граф не вызывался.
	ExecutionStatusRejected ExecutionStatus = "REJECTED"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	return s != ExecutionStatusRunning
}

// NodeStatus — статус узла в рамках одного запроса.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ STREAMING
//	                  ↘ FAILED
//	        ↘ SKIPPED (нет входов или упал предшественник)
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "PENDING"
	NodeStatusRunning   NodeStatus = "RUNNING"
	NodeStatusSucceeded NodeStatus = "SUCCEEDED"
	NodeStatusStreaming NodeStatus = "STREAMING"
	NodeStatusFailed    NodeStatus = "FAILED"
	NodeStatusSkipped   NodeStatus = "SKIPPED"
)

// IsTerminal возвращает true, если узел больше не изменит статус.
func (s NodeStatus) IsTerminal() bool {
	switch s {
	case NodeStatusSucceeded, NodeStatusStreaming, NodeStatusFailed, NodeStatusSkipped:
		return true
	default:
		return false
	}
}

// ParseExecutionStatus парсит строку в ExecutionStatus.
func ParseExecutionStatus(s string) ExecutionStatus {
	switch s {
	case "SUCCEEDED":
		return ExecutionStatusSucceeded
	case "STREAMING":
		return ExecutionStatusStreaming
	case "FAILED":
		return ExecutionStatusFailed
	case "REJECTED":
		return ExecutionStatusRejected
	default:
		return ExecutionStatusRunning
	}
}
