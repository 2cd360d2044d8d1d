package cli

import "errors"

// Ошибки команд. main завершает процесс с кодом 1 на любую из них.
var (
	// ErrFlowsFailed — хотя бы один flow в цикле упал.
	ErrFlowsFailed = errors.New("one or more flows failed")

	// ErrInvalidConfig — программный конфиг или сервисы не прошли проверку.
	ErrInvalidConfig = errors.New("configuration is invalid")
)
