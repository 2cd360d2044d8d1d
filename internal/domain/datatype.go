package domain

// DataType — тип данных, который сервис принимает или отдаёт.
//
// Закрытое перечисление: новый тип требует новой функции проверки
// в contract.Verifier, иначе проверка будет падать с unsupported.
type DataType int

const (
	// DataTypeUnknown — тип не распознан (не входит в поддерживаемый набор).
	DataTypeUnknown DataType = iota

	// DataTypeNumber — JSON number.
	DataTypeNumber

	// DataTypeString — JSON string.
	DataTypeString

	// DataTypeObject — JSON object (key-value).
	DataTypeObject

	// DataTypeArray — JSON array.
	DataTypeArray

	// DataTypeBoolean — true / false.
	DataTypeBoolean

	// DataTypeTime — строка с датой/временем в заданном формате.
	DataTypeTime
)

// dataTypeNames — имена типов в конфигурации сервиса.
var dataTypeNames = map[string]DataType{
	"number":  DataTypeNumber,
	"string":  DataTypeString,
	"object":  DataTypeObject,
	"array":   DataTypeArray,
	"boolean": DataTypeBoolean,
	"time":    DataTypeTime,

	// старое имя object из первых версий конфигов
	"dictionary": DataTypeObject,
}

// ParseDataType парсит имя типа из конфигурации.
// Второе значение false, если тип не поддерживается.
func ParseDataType(name string) (DataType, bool) {
	t, ok := dataTypeNames[name]
	return t, ok
}

// String возвращает каноническое имя типа.
func (t DataType) String() string {
	switch t {
	case DataTypeNumber:
		return "number"
	case DataTypeString:
		return "string"
	case DataTypeObject:
		return "object"
	case DataTypeArray:
		return "array"
	case DataTypeBoolean:
		return "boolean"
	case DataTypeTime:
		return "time"
	default:
		return "unknown"
	}
}

// SupportedDataTypes возвращает все поддерживаемые типы.
func SupportedDataTypes() []DataType {
	return []DataType{
		DataTypeNumber,
		DataTypeString,
		DataTypeObject,
		DataTypeArray,
		DataTypeBoolean,
		DataTypeTime,
	}
}
