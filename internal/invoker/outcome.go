package invoker

import (
	"context"
	"errors"
	"io"
	"sync"
)

// Kind — вариант Outcome.
type Kind string

const (
	KindComplete  Kind = "COMPLETE"
	KindStreaming Kind = "STREAMING"
	KindFailed    Kind = "FAILED"
)

// FailureKind — причина Failed.
type FailureKind string

const (
	// FailureUnreachable — ошибка соединения или таймаут.
	FailureUnreachable FailureKind = "UNREACHABLE"

	// FailureRemoteRejected — сервис ответил не 2xx.
	FailureRemoteRejected FailureKind = "REMOTE_REJECTED"

	// FailureInvalidRequest — запрос не удалось сформировать.
	FailureInvalidRequest FailureKind = "INVALID_REQUEST"

	// FailureInternal — Invoker завершился паникой.
	FailureInternal FailureKind = "INTERNAL"
)

// Outcome — результат одного вызова сервиса.
type Outcome struct {
	// Kind — вариант результата.
	Kind Kind

	// Body — разобранное тело ответа (только для Complete).
	Body map[string]any

	// Stream — открытый поток (только для Streaming).
	Stream *Stream

	// Failure — причина ошибки (только для Failed).
	Failure FailureKind

	// Err — ошибка с контекстом (только для Failed).
	Err error

	// StatusCode — HTTP-код ответа, если ответ был получен.
	StatusCode int

	// Attempts — количество выполненных попыток.
	Attempts int
}

// Complete создаёт Outcome с полным ответом.
func Complete(body map[string]any) Outcome {
	if body == nil {
		body = make(map[string]any)
	}
	return Outcome{Kind: KindComplete, Body: body}
}

// Streaming создаёт Outcome с открытым потоком.
func Streaming(stream *Stream) Outcome {
	return Outcome{Kind: KindStreaming, Stream: stream}
}

// Failed создаёт Outcome с ошибкой.
func Failed(kind FailureKind, err error) Outcome {
	return Outcome{Kind: KindFailed, Failure: kind, Err: err}
}

// IsComplete, IsStreaming, IsFailed — проверки варианта.
func (o Outcome) IsComplete() bool  { return o.Kind == KindComplete }
func (o Outcome) IsStreaming() bool { return o.Kind == KindStreaming }
func (o Outcome) IsFailed() bool    { return o.Kind == KindFailed }

// Text возвращает поле "text" полного ответа, если оно строковое.
func (o Outcome) Text() (string, bool) {
	if o.Kind != KindComplete {
		return "", false
	}
	text, ok := o.Body["text"].(string)
	return text, ok
}

// ErrorMessage возвращает текст ошибки для Failed.
func (o Outcome) ErrorMessage() string {
	if o.Kind != KindFailed || o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Stream — потоковый ответ сервиса.
//
// Stream читается напрямую из тела HTTP-ответа без буферизации.
// Close освобождает соединение и контекст запроса; вызывать его можно
// многократно, в том числе из разных горутин.
type Stream struct {
	node        string
	contentType string
	body        io.ReadCloser
	cancel      context.CancelFunc

	once     sync.Once
	closeErr error
}

// NewStream оборачивает тело ответа. cancel может быть nil.
func NewStream(node, contentType string, body io.ReadCloser, cancel context.CancelFunc) *Stream {
	return &Stream{
		node:        node,
		contentType: contentType,
		body:        body,
		cancel:      cancel,
	}
}

// Read читает очередную порцию потока.
func (s *Stream) Read(p []byte) (int, error) {
	if s.body == nil {
		return 0, io.EOF
	}
	return s.body.Read(p)
}

// Close закрывает поток.
func (s *Stream) Close() error {
	s.once.Do(func() {
		if s.body != nil {
			s.closeErr = s.body.Close()
		}
		if s.cancel != nil {
			s.cancel()
		}
	})
	return s.closeErr
}

// Node возвращает имя узла, отдавшего поток.
func (s *Stream) Node() string {
	return s.node
}

// ContentType возвращает Content-Type потока.
func (s *Stream) ContentType() string {
	return s.contentType
}

// CloseStreams закрывает все потоки в outcomes, кроме keep.
func CloseStreams(outcomes map[string]Outcome, keep *Stream) error {
	var errs []error
	for _, o := range outcomes {
		if o.Kind == KindStreaming && o.Stream != nil && o.Stream != keep {
			if err := o.Stream.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
