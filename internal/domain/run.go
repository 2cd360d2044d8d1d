package domain

import (
	"time"

	"github.com/google/uuid"
)

// FlowRun — одно выполнение flow.
//
// Создаётся executor'ом в начале запуска и не сохраняется
// между циклами: история запусков живёт только в логах и метриках.
type FlowRun struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Flow — имя выполняемого flow.
	Flow string `json:"flow"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Services — результаты сервисов в порядке выполнения.
	// Сервисы, до которых flow не дошёл, здесь отсутствуют.
	Services []ServiceRun `json:"services,omitempty"`

	// Output — stdout последнего успешно выполненного сервиса.
	Output []byte `json:"-"`

	// FailedService — сервис, на котором flow прервался.
	FailedService string `json:"failed_service,omitempty"`

	// Err — причина провала (sentinel ошибки executor'а).
	Err error `json:"-"`

	// StartedAt — время начала выполнения (статус стал RUNNING).
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// ServiceRun — результат выполнения одного сервиса внутри flow.
type ServiceRun struct {
	// Service — имя сервиса.
	Service string `json:"service"`

	// ExitCode — код завершения процесса (-1, если процесс не запустился).
	ExitCode int `json:"exit_code"`

	// Stderr — stderr процесса.
	Stderr []byte `json:"-"`

	// Inbound — результат проверки входного контракта ("" — проверка не выполнялась).
	Inbound string `json:"inbound,omitempty"`

	// Outbound — результат проверки выходного контракта.
	Outbound string `json:"outbound,omitempty"`

	// Duration — время выполнения процесса.
	Duration time.Duration `json:"duration"`
}

// NewFlowRun создаёт run в статусе PENDING.
func NewFlowRun(flow string) *FlowRun {
	return &FlowRun{
		ID:        uuid.New(),
		Flow:      flow,
		Status:    RunStatusPending,
		CreatedAt: time.Now(),
	}
}

// Succeeded возвращает true, если flow выполнен успешно.
func (r *FlowRun) Succeeded() bool {
	return r.Status == RunStatusSucceeded
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run не стартовал или не завершён.
func (r *FlowRun) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *FlowRun) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *FlowRun) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *FlowRun) MarkSucceeded(output []byte) {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
	r.Output = output
}

// MarkFailed переводит run в статус FAILED.
// service может быть пустым, если flow упал на проверке готовности.
func (r *FlowRun) MarkFailed(service string, err error) {
	now := time.Now()
	if r.StartedAt == nil {
		r.StartedAt = &now
	}
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.FailedService = service
	r.Err = err
}

// Error возвращает текст ошибки или "".
func (r *FlowRun) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
