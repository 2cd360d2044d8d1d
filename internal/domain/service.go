package domain

import (
	"encoding/json"
	"time"
)

// Direction — направление потока данных относительно сервиса.
type Direction string

const (
	// DirectionInbound — данные, которые сервис получает (output предыдущего сервиса).
	DirectionInbound Direction = "input"

	// DirectionOutbound — данные, которые сервис пишет в stdout.
	DirectionOutbound Direction = "output"
)

// Contract — контракт данных на одной стороне сервиса.
//
// Type хранится как строка из конфига: неподдерживаемый тип
// не ошибка загрузки, а провал проверки во время выполнения flow.
type Contract struct {
	// Type — имя типа: "number", "string", "object", "array", "boolean", "time".
	Type string `json:"type,omitempty"`

	// Format — формат времени в стиле strftime (только для type="time").
	// Например: "%Y-%m-%d".
	Format string `json:"format,omitempty"`
}

// UnmarshalJSON читает type и format любого JSON-типа.
// Не строковое значение сохраняется как JSON-текст (например, "5")
// и отклоняется при проверке как неподдерживаемый тип.
func (c *Contract) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type   json.RawMessage `json:"type"`
		Format json.RawMessage `json:"format"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Type = lenientString(raw.Type)
	c.Format = lenientString(raw.Format)
	return nil
}

func lenientString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// IsConfigured возвращает true, если тип задан.
func (c *Contract) IsConfigured() bool {
	return c != nil && c.Type != ""
}

// DataType возвращает распарсенный тип контракта.
func (c *Contract) DataType() (DataType, bool) {
	if c == nil {
		return DataTypeUnknown, false
	}
	return ParseDataType(c.Type)
}

// Service — определение сервиса (services/<name>/config.json).
//
// Service никогда не меняется после загрузки:
// reload создаёт новое значение и заменяет старое целиком.
type Service struct {
	// Name — уникальное имя сервиса (имя директории с config.json).
	Name string `json:"-"`

	// Program — путь или имя исполняемого файла.
	// Префикс "./" означает путь относительно директории сервиса.
	Program string `json:"program"`

	// Parameters — шаблон аргументов. "$$" заменяется на output предыдущего сервиса.
	Parameters string `json:"parameters"`

	// Input — контракт входных данных (опционально).
	Input *Contract `json:"input,omitempty"`

	// Output — контракт выходных данных (опционально).
	Output *Contract `json:"output,omitempty"`

	// ConfigPath — путь к config.json, из которого загружен сервис.
	ConfigPath string `json:"-"`

	// LoadedAt — время загрузки.
	LoadedAt time.Time `json:"-"`
}

// Contract возвращает контракт для направления.
// nil означает, что контракт не настроен.
func (s *Service) Contract(dir Direction) *Contract {
	switch dir {
	case DirectionInbound:
		return s.Input
	case DirectionOutbound:
		return s.Output
	default:
		return nil
	}
}
