// Package assembler превращает результат обхода графа в ответ клиенту.
//
// Правила:
//   - первый потоковый результат в порядке обхода отдаётся клиенту как есть,
//     остальные потоки закрываются;
//   - иначе текст берётся у primary-узла графа (если он задан и завершился
//     успешно), либо у последнего листа RuntimeGraph, давшего текст;
//   - если ни один лист не дал текста, клиент получает "No response generated".
package assembler

import (
	"log/slog"

	"github.com/shaiso/megaflow/internal/domain"
	"github.com/shaiso/megaflow/internal/invoker"
	"github.com/shaiso/megaflow/internal/scheduler"
)

// Reply — ответ клиенту: либо поток, либо готовый envelope.
type Reply struct {
	Stream   *invoker.Stream
	Response *domain.ChatCompletionResponse
}

// IsStream возвращает true, если ответ — поток.
func (r Reply) IsStream() bool {
	return r.Stream != nil
}

// Assembler собирает Reply из scheduler.Result.
type Assembler struct {
	model   string
	primary string
	logger  *slog.Logger
}

// Config — конфигурация Assembler.
type Config struct {
	// Model — значение поля model в ответе (default: "example-model").
	Model string

	// Primary — имя узла, чей текст является ответом. Пусто — последний лист.
	Primary string

	Logger *slog.Logger
}

// New создаёт Assembler.
func New(cfg Config) *Assembler {
	model := cfg.Model
	if model == "" {
		model = domain.DefaultModel
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Assembler{
		model:   model,
		primary: cfg.Primary,
		logger:  logger,
	}
}

// Model возвращает значение поля model в ответах.
func (a *Assembler) Model() string {
	return a.model
}

// Assemble собирает ответ.
func (a *Assembler) Assemble(result *scheduler.Result) Reply {
	if result == nil || result.Runtime == nil {
		return a.Text(domain.NoResponseContent)
	}

	if stream := a.pickStream(result); stream != nil {
		return Reply{Stream: stream}
	}

	text, ok := a.pickText(result)
	if !ok {
		a.logger.Debug("no leaf produced text", "leaves", result.Runtime.Leaves())
		return a.Text(domain.NoResponseContent)
	}

	return a.Text(text)
}

// Text оборачивает произвольный текст в envelope.
func (a *Assembler) Text(content string) Reply {
	return Reply{Response: domain.NewAssistantResponse(a.model, content)}
}

// NoMessages возвращает ответ на запрос без сообщений.
func (a *Assembler) NoMessages() Reply {
	return a.Text(domain.NoMessagesContent)
}

// pickStream выбирает первый поток в порядке обхода и закрывает остальные.
func (a *Assembler) pickStream(result *scheduler.Result) *invoker.Stream {
	var winner *invoker.Stream
	for _, name := range result.Runtime.Nodes() {
		if o := result.Outcomes[name]; o.IsStreaming() && o.Stream != nil {
			winner = o.Stream
			break
		}
	}
	if winner == nil {
		return nil
	}

	if err := invoker.CloseStreams(result.Outcomes, winner); err != nil {
		a.logger.Warn("failed to close extra streams", "error", err)
	}
	return winner
}

// pickText выбирает текст ответа: primary-узел, затем листья
// RuntimeGraph с конца. Упавшие листья и листья без текста пропускаются.
func (a *Assembler) pickText(result *scheduler.Result) (string, bool) {
	if a.primary != "" {
		if text, ok := completeText(result, a.primary); ok {
			return text, true
		}
	}

	leaves := result.Runtime.Leaves()
	for i := len(leaves) - 1; i >= 0; i-- {
		if text, ok := completeText(result, leaves[i]); ok {
			return text, true
		}
	}
	return "", false
}

func completeText(result *scheduler.Result, name string) (string, bool) {
	o, ok := result.Outcomes[name]
	if !ok || !o.IsComplete() {
		return "", false
	}
	text, ok := o.Text()
	return text, ok && text != ""
}
