package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/shaiso/relay/internal/domain"
	"github.com/shaiso/relay/internal/telemetry"
)

// Default configuration values.
const (
	DefaultServicesDir   = "services"
	ServiceConfigName    = "config.json"
	DefaultProgramConfig = "ifttt.json"
)

// Store — владелец конфигурации: сервисов, flows и записей о файлах.
//
// Reload выполняется оркестратором только между циклами,
// flows выполняются на Snapshot(), поэтому Store — read-mostly.
type Store struct {
	servicesDir string

	mu  sync.RWMutex
	cfg *domain.Configuration

	// serviceFiles — все когда-либо загруженные config.json (path → имя сервиса),
	// включая сервисы, не прошедшие проверку.
	serviceFiles map[string]string

	watch *watchRecords

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Config — конфигурация Store.
type Config struct {
	ServicesDir string // корень директорий сервисов (default: "services")
	Logger      *slog.Logger
	Metrics     *telemetry.Metrics // опционально
}

// New создаёт пустой Store.
func New(cfg Config) *Store {
	servicesDir := cfg.ServicesDir
	if servicesDir == "" {
		servicesDir = DefaultServicesDir
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Store{
		servicesDir:  servicesDir,
		cfg:          domain.NewConfiguration(),
		serviceFiles: make(map[string]string),
		watch:        newWatchRecords(),
		logger:       logger,
		metrics:      cfg.Metrics,
	}
}

// ServicesDir возвращает корень директорий сервисов.
func (s *Store) ServicesDir() string {
	return s.servicesDir
}

// FileChanged возвращает true, если mtime файла отличается от сохранённого
// или файл ещё не загружался.
func (s *Store) FileChanged(path string) bool {
	return s.watch.changed(path)
}

// Snapshot возвращает неизменяемую копию текущей конфигурации.
func (s *Store) Snapshot() *domain.Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Snapshot()
}

// ServiceCount возвращает количество активных сервисов.
func (s *Store) ServiceCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.cfg.Services)
}

// LoadService загружает (или перезагружает) сервис name из path.
//
// Определение заменяется целиком. Если JSON битый или не пройдена
// проверка обязательных полей, сервис исключается из активного набора.
// nil означает успешную загрузку.
func (s *Store) LoadService(name, path string) error {
	logger := telemetry.WithService(s.logger, name)

	s.mu.Lock()
	s.serviceFiles[path] = name
	s.mu.Unlock()

	if err := s.watch.record(path); err != nil {
		s.evict(name)
		return s.serviceFailed(logger, fmt.Errorf("%w: %s: %v", ErrReadConfig, path, err))
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		s.evict(name)
		return s.serviceFailed(logger, fmt.Errorf("%w: %s: %v", ErrReadConfig, path, err))
	}

	if !gjson.ValidBytes(raw) {
		s.evict(name)
		return s.serviceFailed(logger, fmt.Errorf("%w: %s: %s", ErrMalformedConfig, path, syntaxErrorDetail(raw)))
	}

	var svc domain.Service
	if err := json.Unmarshal(raw, &svc); err != nil {
		s.evict(name)
		return s.serviceFailed(logger, fmt.Errorf("%w: %s: %v", ErrMalformedConfig, path, err))
	}
	svc.Name = name
	svc.ConfigPath = path
	svc.LoadedAt = time.Now()

	s.mu.Lock()
	s.cfg.Services[name] = &svc
	s.mu.Unlock()

	logger.Info("service loaded", "path", path)

	if err := verifyService(name, raw, &svc); err != nil {
		s.evict(name)
		return s.serviceFailed(logger, err)
	}

	logger.Info("service passed mandatory field verification")
	s.metrics.ConfigReloaded("service", "ok")
	return nil
}

// verifyService проверяет обязательные ключи и значения сервиса.
func verifyService(name string, raw []byte, svc *domain.Service) error {
	if err := VerifyRequiredKeys(raw, RequiredKeys[KeyServiceConfiguration]); err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			ve.Service = name
		}
		return err
	}

	if strings.TrimSpace(svc.Program) == "" {
		return NewValidationError(name, "program", "program is empty", ErrInvalidField)
	}

	return nil
}

func (s *Store) serviceFailed(logger *slog.Logger, err error) error {
	logger.Error("service failed to load", "error", err)
	s.metrics.ConfigReloaded("service", "error")
	return err
}

// evict удаляет сервис из активного набора.
func (s *Store) evict(name string) {
	s.mu.Lock()
	delete(s.cfg.Services, name)
	s.mu.Unlock()
}

// DiscoveryReport — итог прохода по директории сервисов.
type DiscoveryReport struct {
	// Loaded — сервисы, (пере)загруженные успешно.
	Loaded []string

	// Failed — сервисы, не прошедшие загрузку (имя → причина).
	Failed map[string]error

	// Removed — сервисы, чей config.json исчез.
	Removed []string

	// Unchanged — количество файлов без изменений (не перечитывались).
	Unchanged int
}

// OK возвращает true, если ни один сервис не упал при загрузке.
func (r *DiscoveryReport) OK() bool {
	return len(r.Failed) == 0
}

// FailedNames возвращает имена упавших сервисов в алфавитном порядке.
func (r *DiscoveryReport) FailedNames() []string {
	names := make([]string, 0, len(r.Failed))
	for name := range r.Failed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DiscoverServices обходит директорию сервисов и загружает изменённые config.json.
//
// Имя сервиса — имя директории, содержащей config.json.
// Ошибка одного сервиса не прерывает обход (см. DiscoveryReport.Failed).
// Повторный вызов без изменений файлов ничего не перечитывает.
func (s *Store) DiscoverServices() (*DiscoveryReport, error) {
	report := &DiscoveryReport{Failed: make(map[string]error)}

	seen := make(map[string]bool)     // пути config.json, найденные в этом проходе
	owners := make(map[string]string) // имя сервиса → путь

	err := filepath.WalkDir(s.servicesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == s.servicesDir {
				return err
			}
			s.logger.Warn("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() || d.Name() != ServiceConfigName {
			return nil
		}

		name := filepath.Base(filepath.Dir(path))
		seen[path] = true

		if other, dup := owners[name]; dup {
			report.Failed[name] = NewValidationError(name, "name",
				fmt.Sprintf("duplicate service name: %s and %s", other, path), ErrInvalidField)
			s.logger.Error("duplicate service name", "service", name, "path", path, "other", other)
			return nil
		}
		owners[name] = path

		if !s.watch.changed(path) {
			report.Unchanged++
			return nil
		}

		if err := s.LoadService(name, path); err != nil {
			report.Failed[name] = err
			return nil
		}
		report.Loaded = append(report.Loaded, name)
		return nil
	})

	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("services directory does not exist", "dir", s.servicesDir)
		} else {
			return report, fmt.Errorf("walk services directory %s: %w", s.servicesDir, err)
		}
	}

	report.Removed = s.removeMissing(seen)
	s.metrics.SetServicesLoaded(s.ServiceCount())

	return report, nil
}

// removeMissing удаляет сервисы, чьи config.json не найдены в последнем проходе.
func (s *Store) removeMissing(seen map[string]bool) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for path, name := range s.serviceFiles {
		if seen[path] {
			continue
		}
		delete(s.serviceFiles, path)
		s.watch.forget(path)

		if svc, ok := s.cfg.Services[name]; ok && svc.ConfigPath == path {
			delete(s.cfg.Services, name)
			removed = append(removed, name)
			s.logger.Info("service removed", "service", name, "path", path)
		}
	}
	sort.Strings(removed)
	return removed
}

// LoadProgramConfig загружает flows из программного конфига, если файл изменился.
//
// Возвращает true, если файл был перечитан. ErrMalformedProgramConfig
// и ErrReadConfig фатальны для вызывающего. Отсутствие обязательных
// ключей логируется и даёт пустой набор flows.
func (s *Store) LoadProgramConfig(path string) (bool, error) {
	if !s.watch.changed(path) {
		return false, nil
	}

	if err := s.watch.record(path); err != nil {
		s.metrics.ConfigReloaded("program", "error")
		return true, fmt.Errorf("%w: %s: %v", ErrReadConfig, path, err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		s.metrics.ConfigReloaded("program", "error")
		return true, fmt.Errorf("%w: %s: %v", ErrReadConfig, path, err)
	}

	if !gjson.ValidBytes(raw) {
		s.metrics.ConfigReloaded("program", "error")
		return true, fmt.Errorf("%w: %s: %s", ErrMalformedProgramConfig, path, syntaxErrorDetail(raw))
	}

	flows := s.parseFlows(path, raw)

	s.mu.Lock()
	s.cfg.Flows = flows
	s.mu.Unlock()

	s.metrics.ConfigReloaded("program", "ok")
	s.logger.Info("program configuration loaded", "path", path, "flows", len(flows))

	return true, nil
}

// parseFlows читает "flows" в порядке объявления.
func (s *Store) parseFlows(path string, raw []byte) []domain.Flow {
	if err := VerifyRequiredKeys(raw, RequiredKeys[KeyProgramConfiguration]); err != nil {
		s.logger.Error("program configuration failed mandatory field verification",
			"path", path, "error", err)
		return nil
	}

	doc := gjson.ParseBytes(raw)
	if doc.Get("services").Exists() {
		s.logger.Debug("ignoring legacy services key, services are loaded from their own directories")
	}

	flowsDoc := doc.Get("flows")
	if !flowsDoc.IsObject() {
		s.logger.Error("flows must be an object of flow name to service list", "path", path)
		return nil
	}

	var flows []domain.Flow
	index := make(map[string]int)

	flowsDoc.ForEach(func(key, value gjson.Result) bool {
		name := key.String()

		services, ok := parseServiceList(value)
		if !ok {
			s.logger.Error("flow skipped: services must be a list of names", "flow", name)
			return true
		}
		if len(services) == 0 {
			s.logger.Warn("flow has no services and will fail when run", "flow", name)
		}

		flow := domain.Flow{Name: name, Services: services}

		// дубликат ключа: побеждает последнее определение, позиция первого
		if i, dup := index[name]; dup {
			flows[i] = flow
			return true
		}
		index[name] = len(flows)
		flows = append(flows, flow)
		return true
	})

	return flows
}

func parseServiceList(value gjson.Result) ([]string, bool) {
	if !value.IsArray() {
		return nil, false
	}

	items := value.Array()
	services := make([]string, 0, len(items))
	for _, item := range items {
		if item.Type != gjson.String {
			return nil, false
		}
		services = append(services, item.Str)
	}
	return services, true
}

// syntaxErrorDetail возвращает позицию ошибки синтаксиса JSON для логов.
func syntaxErrorDetail(raw []byte) string {
	var v any
	err := json.Unmarshal(raw, &v)

	var se *json.SyntaxError
	if errors.As(err, &se) {
		line := 1 + strings.Count(string(raw[:min(int(se.Offset), len(raw))]), "\n")
		return fmt.Sprintf("invalid JSON on line %d: %v", line, se)
	}
	if err != nil {
		return err.Error()
	}
	return "invalid JSON"
}
