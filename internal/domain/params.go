package domain

// Значения LLMParams по умолчанию.
const (
	DefaultMaxTokens         = 1024
	DefaultTopK              = 10
	DefaultTopP              = 0.95
	DefaultTemperature       = 0.01
	DefaultFrequencyPenalty  = 0.0
	DefaultPresencePenalty   = 0.0
	DefaultRepetitionPenalty = 1.03
)

// LLMParams — параметры генерации, передаваемые LLM-сервисам.
//
// Разрешаются один раз при приёме запроса (см. ParamsFromRequest)
// и дальше по pipeline передаются как есть.
type LLMParams struct {
	// MaxTokens — ограничение длины генерации.
	MaxTokens int `json:"max_tokens"`

	// TopK, TopP — ширина сэмплирования.
	TopK int     `json:"top_k"`
	TopP float64 `json:"top_p"`

	// Temperature — степень случайности.
	Temperature float64 `json:"temperature"`

	// Штрафы за повторы.
	FrequencyPenalty  float64 `json:"frequency_penalty"`
	PresencePenalty   float64 `json:"presence_penalty"`
	RepetitionPenalty float64 `json:"repetition_penalty"`

	// Stream — запросить потоковый ответ вместо полного.
	Stream bool `json:"stream"`

	// ChatTemplate — переопределение шаблона промпта. Пусто — не задан.
	ChatTemplate string `json:"chat_template,omitempty"`
}

// DefaultLLMParams возвращает параметры со значениями по умолчанию.
func DefaultLLMParams() LLMParams {
	return LLMParams{
		MaxTokens:         DefaultMaxTokens,
		TopK:              DefaultTopK,
		TopP:              DefaultTopP,
		Temperature:       DefaultTemperature,
		FrequencyPenalty:  DefaultFrequencyPenalty,
		PresencePenalty:   DefaultPresencePenalty,
		RepetitionPenalty: DefaultRepetitionPenalty,
	}
}

// ParamsFromRequest разрешает LLMParams из запроса:
// каждое не переданное поле получает значение по умолчанию.
func ParamsFromRequest(req *ChatCompletionRequest) LLMParams {
	p := DefaultLLMParams()
	if req == nil {
		return p
	}
	if req.MaxTokens != nil {
		p.MaxTokens = *req.MaxTokens
	}
	if req.TopK != nil {
		p.TopK = *req.TopK
	}
	if req.TopP != nil {
		p.TopP = *req.TopP
	}
	if req.Temperature != nil {
		p.Temperature = *req.Temperature
	}
	if req.FrequencyPenalty != nil {
		p.FrequencyPenalty = *req.FrequencyPenalty
	}
	if req.PresencePenalty != nil {
		p.PresencePenalty = *req.PresencePenalty
	}
	if req.RepetitionPenalty != nil {
		p.RepetitionPenalty = *req.RepetitionPenalty
	}
	if req.Stream != nil {
		p.Stream = *req.Stream
	}
	if req.ChatTemplate != nil {
		p.ChatTemplate = *req.ChatTemplate
	}
	return p
}
