// Package cli реализует инструмент командной строки megaflow.
//
// # Обзор
//
// CLI — клиентская утилита для megaflow API. С сервером работает по HTTP
// и не импортирует internal/api: типы ответов продублированы в client.go.
// Исключение — executions watch, который читает события напрямую
// из RabbitMQ через internal/mq.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для megaflow API. Инкапсулирует запросы, разбор
// ответов (DataResponse, ListResponse, ErrorResponse) и ошибок.
// Поток ответа копируется в writer как есть.
//
//	client := cli.NewClient("http://localhost:8888")
//	resp, err := client.Chat(cli.ChatRequest{...})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
//
// ## Commands
//
//   - chat MESSAGE... [--stream] [--max-tokens N] [--temperature T]
//   - graph
//   - executions: list, get, watch
//
// Каждая команда создаётся через фабричную функцию (NewChatCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
