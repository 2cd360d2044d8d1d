// Package settings читает настройки relay из переменных окружения
// (и необязательного файла .env).
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/shaiso/relay/internal/scheduler"
	"github.com/shaiso/relay/internal/store"
)

// Переменные окружения.
const (
	EnvServicesDir     = "RELAY_SERVICES_DIR"
	EnvSchedule        = "RELAY_SCHEDULE"
	EnvTimezone        = "RELAY_TIMEZONE"
	EnvRunOnStart      = "RELAY_RUN_ON_START"
	EnvFlowConcurrency = "RELAY_FLOW_CONCURRENCY"
	EnvServiceTimeout  = "SERVICE_TIMEOUT"
	EnvRabbitMQURL     = "RABBITMQ_URL"
	EnvMetricsAddr     = "METRICS_ADDR"
)

// DefaultMetricsAddr — адрес /metrics и /healthz по умолчанию.
const DefaultMetricsAddr = ":8084"

// ErrInvalidSetting — значение переменной окружения некорректно.
var ErrInvalidSetting = errors.New("invalid setting")

// Settings — настройки процесса.
type Settings struct {
	// ServicesDir — корень директорий сервисов.
	ServicesDir string

	// Schedule — cron-выражение запуска циклов.
	Schedule string

	// Location — часовой пояс расписания.
	Location *time.Location

	// RunOnStart — первый цикл сразу при старте.
	RunOnStart bool

	// FlowConcurrency — сколько flows выполнять параллельно.
	FlowConcurrency int

	// ServiceTimeout — максимальное время работы сервиса (0 — без ограничения).
	ServiceTimeout time.Duration

	// RabbitMQURL — адрес брокера ("" — без брокера).
	RabbitMQURL string

	// MetricsAddr — адрес HTTP сервера метрик ("" — выключен).
	MetricsAddr string
}

// Load загружает dotenvPath (если файл есть) и читает настройки из окружения.
// Переменные, уже заданные в окружении, не перезаписываются файлом.
func Load(dotenvPath string) (*Settings, error) {
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenvPath, err)
		}
	}
	return FromEnv()
}

// FromEnv читает настройки из окружения.
// Все ошибки значений возвращаются вместе.
func FromEnv() (*Settings, error) {
	s := &Settings{
		ServicesDir:     getenv(EnvServicesDir, store.DefaultServicesDir),
		Schedule:        getenv(EnvSchedule, scheduler.DefaultSchedule),
		Location:        time.Local,
		RunOnStart:      true,
		FlowConcurrency: 1,
		RabbitMQURL:     os.Getenv(EnvRabbitMQURL),
		MetricsAddr:     DefaultMetricsAddr,
	}

	// METRICS_ADDR="" явно выключает сервер метрик
	if v, ok := os.LookupEnv(EnvMetricsAddr); ok {
		s.MetricsAddr = v
	}

	var errs []error

	if err := scheduler.ValidateCronExpr(s.Schedule); err != nil {
		errs = append(errs, invalid(EnvSchedule, err))
	}

	if v := os.Getenv(EnvTimezone); v != "" {
		loc, err := time.LoadLocation(v)
		if err != nil {
			errs = append(errs, invalid(EnvTimezone, err))
		} else {
			s.Location = loc
		}
	}

	if v := os.Getenv(EnvRunOnStart); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, invalid(EnvRunOnStart, err))
		} else {
			s.RunOnStart = b
		}
	}

	if v := os.Getenv(EnvFlowConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		switch {
		case err != nil:
			errs = append(errs, invalid(EnvFlowConcurrency, err))
		case n < 1:
			errs = append(errs, invalid(EnvFlowConcurrency, fmt.Errorf("must be at least 1, got %d", n)))
		default:
			s.FlowConcurrency = n
		}
	}

	if v := os.Getenv(EnvServiceTimeout); v != "" {
		d, err := time.ParseDuration(v)
		switch {
		case err != nil:
			errs = append(errs, invalid(EnvServiceTimeout, err))
		case d < 0:
			errs = append(errs, invalid(EnvServiceTimeout, fmt.Errorf("must not be negative, got %s", d)))
		default:
			s.ServiceTimeout = d
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return s, nil
}

// BrokerEnabled возвращает true, если задан RABBITMQ_URL.
func (s *Settings) BrokerEnabled() bool {
	return s.RabbitMQURL != ""
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func invalid(key string, err error) error {
	return fmt.Errorf("%w %s: %v", ErrInvalidSetting, key, err)
}
