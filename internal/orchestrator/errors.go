package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrFatalConfig — программный конфиг не читается или содержит битый JSON.
	// Процесс должен завершиться.
	ErrFatalConfig = errors.New("fatal program configuration error")

	// ErrNoTrigger — Run вызван без Trigger.
	ErrNoTrigger = errors.New("orchestrator has no trigger")
)
