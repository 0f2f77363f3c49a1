// Package api содержит HTTP сервер оркестратора.
//
// Структура:
//   - handler.go           — Handler с DI (оркестратор, история, logger, metrics)
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — middleware (recovery, logging, metrics)
//   - response.go          — унифицированные JSON-ответы и обработка ошибок
//   - dto.go               — Data Transfer Objects
//   - chat_handler.go      — /v1/chat/completions и /v1/examples (JSON или поток)
//   - graph_handler.go     — /v1/graph, /healthz
//   - execution_handler.go — /v1/executions
//
// Chat-эндпоинты всегда отвечают 200: ошибки обработки приходят
// текстом в envelope. 400 возвращается только для невалидного JSON.
package api
