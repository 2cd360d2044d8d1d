package contract

import (
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/itchyny/timefmt-go"
	"github.com/tidwall/gjson"

	"github.com/shaiso/relay/internal/domain"
	"github.com/shaiso/relay/internal/telemetry"
)

// DataField — поле обёртки, в котором лежит полезная нагрузка.
const DataField = "data"

// DefaultTimeFormat — формат времени, если в контракте не задан format.
const DefaultTimeFormat = "%Y-%m-%d %H:%M:%S"

// Reason — причина результата проверки.
type Reason string

const (
	// ReasonOK — данные соответствуют контракту.
	ReasonOK Reason = "ok"

	// ReasonNoContract — контракт не настроен, проверка пропущена.
	ReasonNoContract Reason = "no_contract"

	// ReasonUnsupportedType — тип контракта не поддерживается.
	ReasonUnsupportedType Reason = "unsupported_type"

	// ReasonMalformedPayload — не UTF-8, не JSON или не JSON object.
	ReasonMalformedPayload Reason = "malformed_payload"

	// ReasonMissingData — в объекте нет поля data.
	ReasonMissingData Reason = "missing_data"

	// ReasonTypeMismatch — тип значения не совпадает с контрактом.
	ReasonTypeMismatch Reason = "type_mismatch"

	// ReasonInvalidTime — значение не парсится как время в заданном формате.
	ReasonInvalidTime Reason = "invalid_time"
)

// Result — результат проверки контракта.
type Result struct {
	OK     bool
	Reason Reason
}

func pass(reason Reason) Result { return Result{OK: true, Reason: reason} }
func fail(reason Reason) Result { return Result{OK: false, Reason: reason} }

// checkFunc проверяет извлечённое значение data.
type checkFunc func(value gjson.Result, format string) Result

// checks — таблица проверок по типу данных.
// Каждому значению domain.SupportedDataTypes() соответствует ровно одна функция.
var checks = map[domain.DataType]checkFunc{
	domain.DataTypeNumber:  checkKind(gjson.Number),
	domain.DataTypeString:  checkKind(gjson.String),
	domain.DataTypeBoolean: checkBoolean,
	domain.DataTypeObject:  checkObject,
	domain.DataTypeArray:   checkArray,
	domain.DataTypeTime:    checkTime,
}

func checkKind(kind gjson.Type) checkFunc {
	return func(value gjson.Result, _ string) Result {
		if value.Type != kind {
			return fail(ReasonTypeMismatch)
		}
		return pass(ReasonOK)
	}
}

func checkBoolean(value gjson.Result, _ string) Result {
	if value.Type != gjson.True && value.Type != gjson.False {
		return fail(ReasonTypeMismatch)
	}
	return pass(ReasonOK)
}

func checkObject(value gjson.Result, _ string) Result {
	if !value.IsObject() {
		return fail(ReasonTypeMismatch)
	}
	return pass(ReasonOK)
}

func checkArray(value gjson.Result, _ string) Result {
	if !value.IsArray() {
		return fail(ReasonTypeMismatch)
	}
	return pass(ReasonOK)
}

func checkTime(value gjson.Result, format string) Result {
	if value.Type != gjson.String {
		return fail(ReasonInvalidTime)
	}
	if format == "" {
		format = DefaultTimeFormat
	}
	parsed, err := timefmt.Parse(value.Str, format)
	if err != nil || normalized(parsed, value.Str, format) {
		return fail(ReasonInvalidTime)
	}
	return pass(ReasonOK)
}

// roundTripDirectives — директивы, для которых Format(Parse(s)) даёт те же числа, что и s.
const roundTripDirectives = "YyCmdeHkIlMSjsbBhaApPcFDxvTXrR%nt"

// normalized сообщает, что timefmt.Parse сдвинул несуществующую дату
// (например, 30 февраля стало 1 марта).
//
// Числа в исходной строке сравниваются с числами в parsed, отформатированном
// тем же форматом. Форматы с директивами вне roundTripDirectives не проверяются.
func normalized(parsed time.Time, source, format string) bool {
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++
		if i == len(format) || !strings.ContainsRune(roundTripDirectives, rune(format[i])) {
			return false
		}
	}
	return !slices.Equal(digitRuns(source), digitRuns(timefmt.Format(parsed, format)))
}

// digitRuns возвращает последовательности цифр без ведущих нулей.
func digitRuns(s string) []string {
	var runs []string
	for i := 0; i < len(s); {
		if s[i] < '0' || s[i] > '9' {
			i++
			continue
		}
		j := i
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		runs = append(runs, strings.TrimLeft(s[i:j], "0"))
		i = j
	}
	return runs
}

// Verifier проверяет данные сервисов на соответствие контрактам.
type Verifier struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// NewVerifier создаёт Verifier. metrics может быть nil.
func NewVerifier(logger *slog.Logger, metrics *telemetry.Metrics) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{logger: logger, metrics: metrics}
}

// Verify проверяет raw (stdout сервиса или output предыдущего сервиса)
// против контракта svc для направления dir.
//
// Порядок:
//  1. Контракт не настроен — проверка пропускается (OK, с предупреждением).
//  2. Тип не поддерживается — провал независимо от данных.
//  3. raw должен быть UTF-8 JSON object с полем data.
//  4. Значение data сверяется с типом по таблице checks.
func (v *Verifier) Verify(svc *domain.Service, dir domain.Direction, raw []byte) Result {
	logger := v.logger.With("service", svc.Name, "direction", string(dir))

	c := svc.Contract(dir)
	if !c.IsConfigured() {
		logger.Warn("service has no data type configured")
		return pass(ReasonNoContract)
	}

	dataType, ok := c.DataType()
	if !ok {
		return v.failed(logger, dir, ReasonUnsupportedType, "type", c.Type)
	}

	if !utf8.Valid(raw) || !gjson.ValidBytes(raw) {
		return v.failed(logger, dir, ReasonMalformedPayload)
	}

	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return v.failed(logger, dir, ReasonMalformedPayload)
	}

	// при повторяющихся ключах действует последний, как в encoding/json
	var value gjson.Result
	doc.ForEach(func(key, val gjson.Result) bool {
		if key.Str == DataField {
			value = val
		}
		return true
	})
	if !value.Exists() {
		return v.failed(logger, dir, ReasonMissingData)
	}

	res := checks[dataType](value, c.Format)
	if !res.OK {
		return v.failed(logger, dir, res.Reason, "type", dataType.String(), "format", c.Format)
	}

	logger.Debug("data contract satisfied", "type", dataType.String())
	return res
}

// Check — Verify, возвращающий только bool.
func (v *Verifier) Check(svc *domain.Service, dir domain.Direction, raw []byte) bool {
	return v.Verify(svc, dir, raw).OK
}

func (v *Verifier) failed(logger *slog.Logger, dir domain.Direction, reason Reason, args ...any) Result {
	logger.Error("data contract verification failed", append([]any{"reason", string(reason)}, args...)...)
	v.metrics.ContractFailed(string(dir), string(reason))
	return fail(reason)
}
