// Package store хранит конфигурацию relay: сервисы и flows.
//
// Включает:
//   - store.go    — Store: загрузка сервисов и программного конфига, Snapshot
//   - watch.go    — записи о времени модификации файлов (hot reload)
//   - required.go — проверка обязательных ключей
//   - errors.go   — ошибки загрузки и ValidationError
//
// Файл перечитывается только если его mtime изменился. Ошибка в конфиге
// одного сервиса исключает этот сервис, но не мешает загрузке остальных.
// Битый JSON в программном конфиге — фатальная ошибка (ErrMalformedProgramConfig).
package store
