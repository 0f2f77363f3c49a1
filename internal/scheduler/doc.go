// Package scheduler выполняет FlowGraph для одного запроса.
//
// Обход управляется готовностью: узел решается, когда решены все его
// предшественники. Решённый узел либо вызывается через Invoker, либо
// пропускается (SKIPPED), если:
//   - предшественник упал, был пропущен или отдал поток;
//   - предшественник вернул downstream_black_list, совпавший с именем узла;
//   - во входных данных нет ни одного из полей Inputs узла.
//
// Структура:
//   - scheduler.go — Scheduler, Schedule, обработка узла
//   - state.go     — executionState: статусы, результаты, счётчики готовности
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Graph:          graph,
//	    Invoker:        inv,
//	    MaxConcurrency: 8,
//	    Logger:         logger,
//	})
//
//	result, err := sched.Schedule(ctx, inputs, params)
package scheduler
