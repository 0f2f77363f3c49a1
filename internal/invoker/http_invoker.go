package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"slices"
	"time"

	"github.com/shaiso/megaflow/internal/domain"
)

const (
	defaultTimeout  = 30 * time.Second
	maxErrorBodyLen = 512
)

// streamingContentTypes — Content-Type, которыми сервис сигнализирует поток.
var streamingContentTypes = map[string]bool{
	"text/event-stream":    true,
	"application/x-ndjson": true,
}

// Invoker вызывает один сервис и возвращает Outcome.
//
// Invoke никогда не возвращает error: все ошибки выражены через Failed.
type Invoker interface {
	Invoke(ctx context.Context, desc domain.ServiceDescriptor, payload map[string]any) Outcome
}

// HTTPInvoker — Invoker поверх HTTP POST с JSON телом.
type HTTPInvoker struct {
	client  *http.Client
	timeout time.Duration
	logger  *slog.Logger
}

// Config — конфигурация HTTPInvoker.
type Config struct {
	// Client — HTTP-клиент (default: новый клиент без общего таймаута;
	// таймаут задаётся на каждый вызов, чтобы не обрывать потоки).
	Client *http.Client

	// Timeout — таймаут вызова по умолчанию (default: 30s).
	Timeout time.Duration

	// Logger
	Logger *slog.Logger
}

// NewHTTPInvoker создаёт HTTPInvoker.
func NewHTTPInvoker(cfg Config) *HTTPInvoker {
	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPInvoker{
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// Close освобождает простаивающие соединения.
func (i *HTTPInvoker) Close() {
	i.client.CloseIdleConnections()
}

// Invoke вызывает сервис с учётом RetryPolicy из descriptor'а.
func (i *HTTPInvoker) Invoke(ctx context.Context, desc domain.ServiceDescriptor, payload map[string]any) Outcome {
	body, err := json.Marshal(payload)
	if err != nil {
		return Failed(FailureInvalidRequest, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
	}

	policy := desc.Retry
	maxAttempts := 1
	if policy != nil && policy.MaxAttempts > 0 {
		maxAttempts = policy.MaxAttempts
	}

	var outcome Outcome
	for attempt := 1; ; attempt++ {
		outcome = i.invokeOnce(ctx, desc, body)
		outcome.Attempts = attempt

		if !outcome.IsFailed() || attempt >= maxAttempts || !shouldRetry(outcome, policy) {
			return outcome
		}

		delay := calculateBackoff(attempt, policy)

		i.logger.Debug("retrying service call",
			"node", desc.Name,
			"attempt", attempt,
			"delay", delay,
			"error", outcome.Err,
		)

		// Ждём с учётом context
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return outcome
		}
	}
}

// invokeOnce выполняет одну попытку вызова.
func (i *HTTPInvoker) invokeOnce(ctx context.Context, desc domain.ServiceDescriptor, body []byte) Outcome {
	timeout := desc.Timeout
	if timeout <= 0 {
		timeout = i.timeout
	}

	// Таймаут покрывает соединение и заголовки, а для полного ответа — и чтение тела.
	// Для потока таймер останавливается, как только поток обнаружен.
	reqCtx, cancel := context.WithCancel(ctx)
	timer := time.AfterFunc(timeout, cancel)
	release := func() {
		timer.Stop()
		cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, desc.URL(), bytes.NewReader(body))
	if err != nil {
		release()
		return Failed(FailureInvalidRequest, fmt.Errorf("%w: create request: %v", ErrInvalidPayload, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	resp, err := i.client.Do(req)
	if err != nil {
		timedOut := reqCtx.Err() != nil && ctx.Err() == nil
		release()
		return unreachable(desc, err, timedOut)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLen))
		resp.Body.Close()
		release()

		outcome := Failed(FailureRemoteRejected,
			fmt.Errorf("%w: %s: HTTP %d: %s", ErrRemoteRejected, desc.Name, resp.StatusCode, truncate(string(snippet), 200)))
		outcome.StatusCode = resp.StatusCode
		return outcome
	}

	if isStreaming(desc, resp) {
		if !timer.Stop() {
			// Таймер успел сработать: контекст запроса уже отменён
			resp.Body.Close()
			cancel()
			return unreachable(desc, context.DeadlineExceeded, true)
		}
		outcome := Streaming(NewStream(desc.Name, resp.Header.Get("Content-Type"), resp.Body, cancel))
		outcome.StatusCode = resp.StatusCode
		return outcome
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	timedOut := reqCtx.Err() != nil && ctx.Err() == nil
	release()
	if err != nil {
		return unreachable(desc, fmt.Errorf("read response: %w", err), timedOut)
	}

	outcome := Complete(decodeBody(data))
	outcome.StatusCode = resp.StatusCode
	return outcome
}

// unreachable формирует Failed(Unreachable).
func unreachable(desc domain.ServiceDescriptor, err error, timedOut bool) Outcome {
	if timedOut {
		return Failed(FailureUnreachable, fmt.Errorf("%w: %s: %w", ErrUnreachable, desc.Name, ErrTimeout))
	}
	return Failed(FailureUnreachable, fmt.Errorf("%w: %s: %v", ErrUnreachable, desc.Name, err))
}

// isStreaming определяет поток: сервис заявил поддержку и ответ сигнализирует поток.
func isStreaming(desc domain.ServiceDescriptor, resp *http.Response) bool {
	if !desc.SupportsStreaming {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return false
	}
	if mediaType == "text/plain" {
		// Простой текст считается потоком только при chunked-передаче
		return resp.ContentLength < 0 && slices.Contains(resp.TransferEncoding, "chunked")
	}
	return streamingContentTypes[mediaType]
}

// decodeBody разбирает тело полного ответа.
//
// JSON-объект возвращается как есть (с нормализацией OpenAI-формы),
// JSON-строка и любое другое тело попадают в поле "text".
func decodeBody(data []byte) map[string]any {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return map[string]any{"text": string(data)}
	}

	switch v := parsed.(type) {
	case map[string]any:
		normalize(v)
		return v
	case string:
		return map[string]any{"text": v}
	default:
		return map[string]any{"text": string(data), "data": v}
	}
}

// normalize дополняет ответ в OpenAI-форме полями "text" и "embedding".
func normalize(body map[string]any) {
	if _, ok := body["text"]; !ok {
		if choice, ok := firstItem(body["choices"]); ok {
			if msg, ok := choice["message"].(map[string]any); ok {
				if content, ok := msg["content"].(string); ok {
					body["text"] = content
				}
			} else if text, ok := choice["text"].(string); ok {
				body["text"] = text
			}
		}
	}

	if _, ok := body["embedding"]; !ok {
		if item, ok := firstItem(body["data"]); ok {
			if embedding, ok := item["embedding"]; ok {
				body["embedding"] = embedding
			}
		}
	}
}

func firstItem(v any) (map[string]any, bool) {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil, false
	}
	item, ok := items[0].(map[string]any)
	return item, ok
}

// IsTimeout проверяет, была ли ошибка вызвана таймаутом.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
