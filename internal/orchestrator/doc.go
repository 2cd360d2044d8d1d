// Package orchestrator управляет циклами выполнения flows.
//
// Один цикл:
//   - Перечитывает программный конфиг, если он изменился (битый конфиг фатален)
//   - Обходит директорию сервисов и перезагружает изменённые config.json
//   - Берёт snapshot конфигурации и выполняет все flows в порядке объявления
//   - Логирует результат и время выполнения каждого flow
//
// Циклы запускаются по сигналу Trigger (расписание cron или внешний kick).
// Reload происходит только в начале цикла, flows работают на snapshot,
// поэтому перезагрузка никогда не пересекается с выполняющимся flow.
package orchestrator
