package store

import "errors"

// Ошибки загрузки конфигурации.
var (
	// ErrMalformedConfig — config.json сервиса не является корректным JSON.
	ErrMalformedConfig = errors.New("malformed service configuration")

	// ErrMalformedProgramConfig — программный конфиг не является корректным JSON.
	// Фатальная ошибка: без него нет топологии flows.
	ErrMalformedProgramConfig = errors.New("malformed program configuration")

	// ErrMissingRequiredKey — в конфиге нет обязательного ключа.
	ErrMissingRequiredKey = errors.New("missing required key")

	// ErrInvalidField — поле есть, но значение недопустимо.
	ErrInvalidField = errors.New("invalid field value")

	// ErrReadConfig — файл конфигурации не читается.
	ErrReadConfig = errors.New("read configuration file")
)

// ValidationError — ошибка проверки конфигурации с контекстом.
type ValidationError struct {
	Service string // сервис ("" для программного конфига)
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Service != "" {
		return "service " + e.Service + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(service, field, message string, err error) *ValidationError {
	return &ValidationError{
		Service: service,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
