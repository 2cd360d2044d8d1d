package domain

// RunStatus — статус выполнения flow.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//
// PENDING соответствует проверке готовности (все сервисы загружены),
// FAILED — прерванной цепочке.
type RunStatus string

const (
	// RunStatusPending — run создан, проверка готовности ещё не пройдена.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — сервисы flow выполняются.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все сервисы выполнены, контракты соблюдены.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — flow прерван.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление RunStatus.
func (s RunStatus) String() string {
	return string(s)
}
