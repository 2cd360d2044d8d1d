package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/relay/internal/domain"
	"github.com/shaiso/relay/internal/store"
	"github.com/shaiso/relay/internal/telemetry"
)

// Trigger сигнализирует, что пора запускать цикл.
//
// Wait блокируется до сигнала. nil — запустить цикл,
// ошибка (обычно ctx.Err()) — остановить оркестратор.
type Trigger interface {
	Wait(ctx context.Context) error
}

// Notifier получает результат каждого flow (например, публикация в RabbitMQ).
type Notifier interface {
	FlowCompleted(ctx context.Context, run *domain.FlowRun) error
}

// ConfigSource — источник конфигурации (store.Store).
type ConfigSource interface {
	LoadProgramConfig(path string) (bool, error)
	DiscoverServices() (*store.DiscoveryReport, error)
	Snapshot() *domain.Configuration
}

// FlowRunner выполняет один flow (executor.Executor).
type FlowRunner interface {
	Run(ctx context.Context, cfg *domain.Configuration, flowName string) *domain.FlowRun
}

// Orchestrator запускает циклы: reload конфигурации → выполнение всех flows.
type Orchestrator struct {
	source   ConfigSource
	runner   FlowRunner
	trigger  Trigger
	notifier Notifier

	programConfig string
	concurrency   int
	runOnStart    bool

	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// Config — конфигурация Orchestrator.
type Config struct {
	Source ConfigSource
	Runner FlowRunner

	// Trigger — сигнал запуска цикла (нужен только для Run).
	Trigger Trigger

	// Notifier — получатель результатов flows (опционально).
	Notifier Notifier

	// ProgramConfig — путь к программному конфигу (default: "ifttt.json").
	ProgramConfig string

	// Concurrency — сколько flows выполнять параллельно (default: 1, последовательно).
	Concurrency int

	// RunOnStart — выполнить первый цикл сразу, не дожидаясь Trigger.
	RunOnStart bool

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// New создаёт Orchestrator.
func New(cfg Config) *Orchestrator {
	programConfig := cfg.ProgramConfig
	if programConfig == "" {
		programConfig = store.DefaultProgramConfig
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		source:        cfg.Source,
		runner:        cfg.Runner,
		trigger:       cfg.Trigger,
		notifier:      cfg.Notifier,
		programConfig: programConfig,
		concurrency:   concurrency,
		runOnStart:    cfg.RunOnStart,
		logger:        logger,
		metrics:       cfg.Metrics,
	}
}

// CycleReport — итог одного цикла.
type CycleReport struct {
	ID        uuid.UUID
	StartedAt time.Time
	Duration  time.Duration

	// ProgramReloaded — программный конфиг был перечитан в этом цикле.
	ProgramReloaded bool

	// Discovery — итог обхода директории сервисов (nil, если цикл прерван раньше).
	Discovery *store.DiscoveryReport

	// Runs — результаты flows в порядке объявления.
	Runs []*domain.FlowRun
}

// Failed возвращает количество упавших flows.
func (r *CycleReport) Failed() int {
	n := 0
	for _, run := range r.Runs {
		if !run.Succeeded() {
			n++
		}
	}
	return n
}

// OK возвращает true, если все flows выполнены успешно.
func (r *CycleReport) OK() bool {
	return r.Failed() == 0
}

// Run запускает циклы по сигналу Trigger, пока ctx не отменён.
//
// Возвращает nil при отмене ctx и ошибку ErrFatalConfig,
// если программный конфиг не загрузился.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.trigger == nil {
		return ErrNoTrigger
	}

	o.logger.Info("starting orchestrator",
		"program_config", o.programConfig,
		"concurrency", o.concurrency,
		"run_on_start", o.runOnStart,
	)

	skipWait := o.runOnStart
	for {
		if !skipWait {
			if err := o.trigger.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					o.logger.Info("orchestrator stopped")
					return nil
				}
				return fmt.Errorf("wait for trigger: %w", err)
			}
		}
		skipWait = false

		if _, err := o.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				o.logger.Info("orchestrator stopped")
				return nil
			}
			return err
		}
	}
}

// Cycle выполняет один цикл.
//
// 1. Программный конфиг перечитывается, если изменился (ошибка фатальна).
// 2. Изменённые сервисы перезагружаются (ошибки сервисов не фатальны).
// 3. Все flows выполняются на snapshot конфигурации.
func (o *Orchestrator) Cycle(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{ID: uuid.New(), StartedAt: time.Now()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	logger := telemetry.WithCycleID(o.logger, report.ID.String())
	ctx = telemetry.WithLogger(ctx, logger)

	o.metrics.CycleStarted()

	reloaded, err := o.source.LoadProgramConfig(o.programConfig)
	if err != nil {
		telemetry.Critical(logger, "program configuration cannot be loaded",
			"path", o.programConfig,
			"error", err,
		)
		return report, fmt.Errorf("%w: %w", ErrFatalConfig, err)
	}
	report.ProgramReloaded = reloaded

	discovery, err := o.source.DiscoverServices()
	report.Discovery = discovery
	if err != nil {
		logger.Error("service discovery failed, using previously loaded services", "error", err)
	} else if !discovery.OK() {
		logger.Warn("some services failed to load, proceeding with the rest",
			"failed", discovery.FailedNames(),
		)
	}

	snapshot := o.source.Snapshot()
	names := snapshot.FlowNames()

	logger.Debug("cycle started", "flows", len(names), "services", len(snapshot.Services))

	report.Runs = o.runFlows(ctx, snapshot, names)

	logger.Info("cycle completed",
		"flows", len(report.Runs),
		"failed", report.Failed(),
		"elapsed", time.Since(report.StartedAt),
	)

	return report, ctx.Err()
}

// runFlows выполняет flows и возвращает результаты в порядке объявления.
func (o *Orchestrator) runFlows(ctx context.Context, snapshot *domain.Configuration, names []string) []*domain.FlowRun {
	runs := make([]*domain.FlowRun, len(names))

	if o.concurrency == 1 {
		for i, name := range names {
			if ctx.Err() != nil {
				return compact(runs)
			}
			runs[i] = o.runFlow(ctx, snapshot, name)
		}
		return runs
	}

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, name := range names {
		if ctx.Err() != nil {
			break
		}
		i, name := i, name
		g.Go(func() error {
			runs[i] = o.runFlow(ctx, snapshot, name)
			return nil
		})
	}
	_ = g.Wait()

	return compact(runs)
}

// runFlow выполняет один flow, логирует результат и уведомляет Notifier.
func (o *Orchestrator) runFlow(ctx context.Context, snapshot *domain.Configuration, name string) *domain.FlowRun {
	logger := telemetry.WithFlow(telemetry.FromContextOr(ctx, o.logger), name)

	start := time.Now()
	run := o.runner.Run(ctx, snapshot, name)
	elapsed := time.Since(start)

	o.metrics.FlowFinished(name, run.Status.String(), elapsed.Seconds())

	if run.Succeeded() {
		logger.Info("flow completed successfully", "elapsed", elapsed)
	} else {
		logger.Error("flow failed",
			"failed_service", run.FailedService,
			"error", run.Err,
			"elapsed", elapsed,
		)
	}

	if o.notifier != nil {
		if err := o.notifier.FlowCompleted(ctx, run); err != nil {
			logger.Warn("failed to publish flow result", "error", err)
		}
	}

	return run
}

// compact убирает flows, которые не были запущены из-за отмены ctx.
func compact(runs []*domain.FlowRun) []*domain.FlowRun {
	out := runs[:0]
	for _, run := range runs {
		if run != nil {
			out = append(out, run)
		}
	}
	return out
}
