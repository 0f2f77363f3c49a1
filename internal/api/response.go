package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shaiso/megaflow/internal/repo"
)

// ErrorCode — код ошибки API.
type ErrorCode string

const (
	// Ошибки chat-запроса. Ответ графа сервисов всегда 200, даже при отказе.
	ErrCodeInvalidChatRequest  ErrorCode = "INVALID_CHAT_REQUEST"
	ErrCodeChatRequestTooLarge ErrorCode = "CHAT_REQUEST_TOO_LARGE"

	// Ошибки истории выполнений.
	ErrCodeHistoryDisabled   ErrorCode = "HISTORY_DISABLED"
	ErrCodeExecutionNotFound ErrorCode = "EXECUTION_NOT_FOUND"
	ErrCodeInvalidQuery      ErrorCode = "INVALID_QUERY"

	ErrCodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// ErrorResponse — структура ответа с ошибкой.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail — детали ошибки.
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// DataResponse — структура успешного ответа.
type DataResponse struct {
	Data any `json:"data"`
}

// ListResponse — структура ответа со списком.
type ListResponse struct {
	Data  any `json:"data"`
	Total int `json:"total"`
}

// JSON отправляет JSON ответ.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Success отправляет успешный ответ с данными.
func Success(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, DataResponse{Data: data})
}

// List отправляет ответ со списком.
func List(w http.ResponseWriter, data any, total int) {
	JSON(w, http.StatusOK, ListResponse{Data: data, Total: total})
}

// Error отправляет ответ с ошибкой.
func Error(w http.ResponseWriter, status int, code ErrorCode, message string) {
	JSON(w, status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// InvalidChatRequest отвечает на тело, которое не разбирается
// как ChatCompletionRequest. Слишком большое тело получает 413.
func InvalidChatRequest(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, ErrCodeChatRequestTooLarge,
			fmt.Sprintf("chat request exceeds %d bytes", tooLarge.Limit))
		return
	}
	Error(w, http.StatusBadRequest, ErrCodeInvalidChatRequest, "invalid chat request: "+err.Error())
}

// HistoryDisabled — сервер запущен без DATABASE_URL.
func HistoryDisabled(w http.ResponseWriter) {
	Error(w, http.StatusNotFound, ErrCodeHistoryDisabled, "execution history is disabled")
}

// InvalidQuery отправляет 400 для неверного параметра запроса истории.
func InvalidQuery(w http.ResponseWriter, message string) {
	Error(w, http.StatusBadRequest, ErrCodeInvalidQuery, message)
}

// InternalError отправляет ошибку 500.
func InternalError(w http.ResponseWriter, logger *slog.Logger, err error) {
	logger.Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, ErrCodeInternalError, "internal server error")
}

// HandleExecutionError преобразует ошибку хранилища выполнений в HTTP ответ.
func HandleExecutionError(w http.ResponseWriter, logger *slog.Logger, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, repo.ErrNotFound) {
		Error(w, http.StatusNotFound, ErrCodeExecutionNotFound, "execution not found")
		return true
	}

	InternalError(w, logger, err)
	return true
}
