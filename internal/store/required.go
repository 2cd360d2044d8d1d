package store

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Имена наборов обязательных ключей.
const (
	KeyServiceConfiguration = "service_configuration"
	KeyProgramConfiguration = "program_configuration_1"
)

// RequiredKeys — обязательные ключи для каждого вида конфигурации.
var RequiredKeys = map[string][]string{
	KeyServiceConfiguration: {"program", "parameters"},
	KeyProgramConfiguration: {"flows"},
}

// VerifyRequiredKeys проверяет, что JSON object raw содержит все ключи keys
// и ни один из них не равен null.
//
// Это чисто структурная проверка: типы значений не проверяются.
func VerifyRequiredKeys(raw []byte, keys []string) error {
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return fmt.Errorf("%w: configuration is not a JSON object", ErrMissingRequiredKey)
	}

	for _, key := range keys {
		value := doc.Get(key)
		if !value.Exists() || value.Type == gjson.Null {
			return NewValidationError("", key,
				fmt.Sprintf("missing required key: %s", key), ErrMissingRequiredKey)
		}
	}

	return nil
}
