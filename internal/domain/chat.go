package domain

import (
	"time"

	"github.com/google/uuid"
)

// Константы ответа.
const (
	RoleAssistant     = "assistant"
	FinishReasonStop  = "stop"
	ObjectCompletion  = "chat.completion"
	DefaultModel      = "example-model"
	NoMessagesContent = "No messages provided"
	NoResponseContent = "No response generated"
)

// ChatMessage — одно сообщение диалога.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest — входящий запрос в формате chat completion.
//
// Необязательные параметры генерации — указатели:
// nil означает "не передан" и заменяется значением по умолчанию.
type ChatCompletionRequest struct {
	Model    string        `json:"model,omitempty"`
	Messages []ChatMessage `json:"messages"`

	MaxTokens         *int     `json:"max_tokens,omitempty"`
	TopK              *int     `json:"top_k,omitempty"`
	TopP              *float64 `json:"top_p,omitempty"`
	Temperature       *float64 `json:"temperature,omitempty"`
	FrequencyPenalty  *float64 `json:"frequency_penalty,omitempty"`
	PresencePenalty   *float64 `json:"presence_penalty,omitempty"`
	RepetitionPenalty *float64 `json:"repetition_penalty,omitempty"`
	Stream            *bool    `json:"stream,omitempty"`
	ChatTemplate      *string  `json:"chat_template,omitempty"`
}

// LastContent возвращает текст последнего сообщения.
func (r *ChatCompletionRequest) LastContent() string {
	if r == nil || len(r.Messages) == 0 {
		return ""
	}
	return r.Messages[len(r.Messages)-1].Content
}

// ChatCompletionResponse — ответ в формате chat completion.
type ChatCompletionResponse struct {
	ID      string                         `json:"id"`
	Object  string                         `json:"object"`
	Created int64                          `json:"created"`
	Model   string                         `json:"model"`
	Choices []ChatCompletionResponseChoice `json:"choices"`
	Usage   UsageInfo                      `json:"usage"`
}

// ChatCompletionResponseChoice — вариант ответа.
type ChatCompletionResponseChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// UsageInfo — статистика токенов. Оркестратор её не считает.
type UsageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// NewAssistantResponse создаёт ответ с одним вариантом от роли assistant.
func NewAssistantResponse(model, content string) *ChatCompletionResponse {
	if model == "" {
		model = DefaultModel
	}
	return &ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  ObjectCompletion,
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChatCompletionResponseChoice{
			{
				Index:        0,
				Message:      ChatMessage{Role: RoleAssistant, Content: content},
				FinishReason: FinishReasonStop,
			},
		},
	}
}

// Content возвращает текст первого варианта ответа.
func (r *ChatCompletionResponse) Content() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}
