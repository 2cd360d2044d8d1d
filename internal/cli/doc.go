// Package cli реализует подкоманды relay.
//
// # Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: relay validate --json | jq .flows
//
// # Commands
//
//   - once [flow-config]     — один цикл, таблица результатов, exit 1 при упавшем flow
//   - validate [flow-config] — загрузка и проверка конфигурации без запуска
//   - kick                   — публикация flow.trigger для работающего relay
//
// Каждая команда создаётся фабричной функцией (NewOnceCmd и т.д.),
// принимающей замыкания, которые main собирает из настроек:
// так команды не зависят от окружения и тестируются с подменами.
package cli
