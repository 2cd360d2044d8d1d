// Package executor выполняет flow: цепочку сервисов-процессов.
//
// Включает:
//   - executor.go — Executor: машина состояний flow
//   - runner.go   — Runner и ProcessRunner (запуск процесса через os/exec)
//   - errors.go   — причины провала flow
//
// Жизненный цикл run:
//
//	PENDING (проверка готовности) → RUNNING(service_i) → ... → SUCCEEDED
//	                                      ↘ FAILED
//
// Перед запуском сервиса проверяется входной контракт (если есть output
// предыдущего сервиса), после — выходной. Любой провал прерывает flow,
// уже выполненные сервисы не откатываются.
package executor
