// Package invoker выполняет сетевой вызов одного микросервиса.
//
// Результат вызова — Outcome, tagged variant из трёх вариантов:
//   - Complete  — сервис вернул полный ответ (тело разобрано в map)
//   - Streaming — сервис отдаёт поток; тело не читается, а передаётся
//     вызывающему как Stream (владелец обязан закрыть его)
//   - Failed    — Unreachable (сеть, таймаут) или RemoteRejected (не 2xx)
//
// Поток определяется один раз здесь: по заявленной способности сервиса
// (SupportsStreaming) и Content-Type ответа. Дальше по pipeline вариант
// передаётся явно и больше не угадывается.
//
// # Retry
//
// RetryPolicy из ServiceDescriptor применяется к Unreachable и к
// RemoteRejected со статусом из OnStatus. Открытый поток не повторяется.
//
// Стратегии backoff:
//   - fixed       — всегда InitialDelayMs
//   - exponential — InitialDelayMs * 2^(attempt-1), не больше MaxDelayMs
package invoker
