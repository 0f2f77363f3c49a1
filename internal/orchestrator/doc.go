// Package orchestrator — точка входа обработки chat-запросов.
//
// Orchestrator отвечает за:
//   - построение графа сервисов при старте (Add, Connect, SetPrimary, Load)
//   - выполнение графа для запроса (Schedule)
//   - сборку ответа: поток или envelope (Handle)
//   - передачу итогов в Recorder (история в БД, события в RabbitMQ)
//
// Recorder вызывается в фоне, вне пути ответа, с таймаутом RecordTimeout.
// Shutdown дожидается незавершённых записей.
//
// Handle никогда не возвращает ошибку. Любая ошибка и паника превращаются
// в обычный ответ с текстом "Error processing request: ...", а отказ
// отдельного сервиса виден только как пропущенная ветка графа. Клиент
// всегда получает корректный envelope, но не может отличить ошибку
// от ответа по HTTP-статусу; для диагностики есть логи, метрики
// и история выполнений.
package orchestrator
