// Package config собирает конфигурацию megaflow-server из окружения
// и строит граф сервисов (из FLOW_FILE или embedding → llm по умолчанию).
package config
