// Package repo хранит историю выполнений в PostgreSQL.
//
// Структура:
//   - db.go             — пул соединений pgx
//   - execution_repo.go — ExecutionRepo: схема, Save, GetByID, List
//   - errors.go         — общие ошибки
//
// ExecutionRepo реализует orchestrator.Recorder и подключается
// только при заданном DB_URL.
package repo
