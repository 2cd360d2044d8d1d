// Package telemetry обеспечивает наблюдаемость relay.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики циклов, flows и сервисов
//   - server.go  — HTTP сервер /healthz и /metrics с middleware
//
// Метрики регистрируются на переданном prometheus.Registerer:
// в бинарнике это глобальный registry (/metrics), в тестах — отдельный.
package telemetry
