// Package engine содержит модель графа микросервисов.
//
// Включает:
//   - graph.go   — FlowGraph: узлы, рёбра, проверка ацикличности, топологический порядок
//   - runtime.go — RuntimeGraph: подграф, реально пройденный одним запросом
//   - parser.go  — разбор FlowSpec из YAML/JSON и построение FlowGraph
//
// Engine отвечает только за структуру: вызовы сервисов выполняет
// пакет invoker, порядок выполнения определяет пакет scheduler.
package engine
