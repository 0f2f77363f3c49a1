// Package mq публикует и читает события выполнения через RabbitMQ.
//
// Структура:
//   - connection.go — соединение с автоматическим reconnect
//   - topology.go   — обменник megaflow.executions и очереди
//   - publisher.go  — публикация execution.completed (реализует orchestrator.Recorder)
//   - consumer.go   — чтение событий (команда megaflow executions watch)
//
// Публикация событий необязательна: сервер подключается к брокеру
// только при заданном AMQP_URL.
package mq
