package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shaiso/relay/internal/command"
	"github.com/shaiso/relay/internal/contract"
	"github.com/shaiso/relay/internal/domain"
	"github.com/shaiso/relay/internal/telemetry"
)

// maxLoggedStderr — сколько байт stderr попадает в лог.
const maxLoggedStderr = 4096

// Executor выполняет flows.
//
// Executor не хранит состояния между запусками: конфигурация
// передаётся в Run как snapshot и не меняется во время выполнения.
type Executor struct {
	runner      Runner
	verifier    *contract.Verifier
	servicesDir string
	logger      *slog.Logger
	metrics     *telemetry.Metrics
}

// Config — конфигурация Executor.
type Config struct {
	// Runner — запуск процессов (опционально; если nil — ProcessRunner без таймаута).
	Runner Runner

	// Verifier — проверка контрактов (опционально; если nil — создаётся с Logger).
	Verifier *contract.Verifier

	// ServicesDir — корень директорий сервисов для program с префиксом "./".
	ServicesDir string

	Logger  *slog.Logger
	Metrics *telemetry.Metrics
}

// New создаёт Executor.
func New(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runner := cfg.Runner
	if runner == nil {
		runner = &ProcessRunner{}
	}

	verifier := cfg.Verifier
	if verifier == nil {
		verifier = contract.NewVerifier(logger, cfg.Metrics)
	}

	return &Executor{
		runner:      runner,
		verifier:    verifier,
		servicesDir: cfg.ServicesDir,
		logger:      logger,
		metrics:     cfg.Metrics,
	}
}

// Run выполняет flow flowName на конфигурации cfg.
//
// 1. Проверка готовности: flow существует, не пуст, все сервисы загружены.
// 2. Для каждого сервиса по порядку:
//   - входной контракт (если есть output предыдущего сервиса)
//   - построение команды и запуск процесса (stdin = output предыдущего)
//   - выходной контракт (проверяется и при ненулевом коде завершения)
//   - stdout становится входом следующего сервиса
//
// Результат: FlowRun в статусе SUCCEEDED или FAILED.
func (e *Executor) Run(ctx context.Context, cfg *domain.Configuration, flowName string) *domain.FlowRun {
	run := domain.NewFlowRun(flowName)

	logger := telemetry.FromContextOr(ctx, e.logger)
	logger = telemetry.WithRunID(telemetry.WithFlow(logger, flowName), run.ID.String())

	services, missing, err := e.ready(cfg, flowName)
	if err != nil {
		logger.Error("flow is not ready to run", "error", err)
		run.MarkFailed(missing, err)
		return run
	}

	run.MarkRunning()

	var upstream []byte
	for _, svc := range services {
		if err := ctx.Err(); err != nil {
			run.MarkFailed(svc.Name, err)
			return run
		}

		svcLogger := telemetry.WithService(logger, svc.Name)

		sr, output, err := e.runService(ctx, svcLogger, svc, upstream)
		run.Services = append(run.Services, sr)
		if err != nil {
			svcLogger.Error("service failed, aborting flow", "error", err)
			run.MarkFailed(svc.Name, err)
			return run
		}

		upstream = output
	}

	run.MarkSucceeded(upstream)
	return run
}

// ready проверяет, что все сервисы flow загружены.
// Возвращает сервисы в порядке выполнения или ошибку и имя первого
// отсутствующего сервиса.
func (e *Executor) ready(cfg *domain.Configuration, flowName string) ([]*domain.Service, string, error) {
	flow, ok := cfg.Flow(flowName)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrFlowNotFound, flowName)
	}
	if len(flow.Services) == 0 {
		return nil, "", fmt.Errorf("%w: %s", ErrEmptyFlow, flowName)
	}

	services := make([]*domain.Service, 0, len(flow.Services))
	var missing []string
	for _, name := range flow.Services {
		svc, ok := cfg.Service(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		services = append(services, svc)
	}

	if len(missing) > 0 {
		return nil, missing[0], fmt.Errorf("%w: %s", ErrServiceNotReady, strings.Join(missing, ", "))
	}

	return services, "", nil
}

// runService выполняет один сервис и возвращает его stdout.
func (e *Executor) runService(
	ctx context.Context,
	logger *slog.Logger,
	svc *domain.Service,
	upstream []byte,
) (domain.ServiceRun, []byte, error) {
	sr := domain.ServiceRun{Service: svc.Name, ExitCode: -1}

	if len(upstream) > 0 {
		res := e.verifier.Verify(svc, domain.DirectionInbound, upstream)
		sr.Inbound = string(res.Reason)
		if !res.OK {
			return sr, nil, fmt.Errorf("%w: service %s: %s", ErrInboundContract, svc.Name, res.Reason)
		}
	}

	cmd, err := command.Build(e.servicesDir, svc, upstream)
	if err != nil {
		return sr, nil, fmt.Errorf("%w: %v", ErrCommandBuild, err)
	}

	logger.Debug("starting service", "command", cmd.String())

	proc, err := e.runner.Run(ctx, cmd, upstream)
	if proc != nil {
		sr.ExitCode = proc.ExitCode
		sr.Stderr = proc.Stderr
		sr.Duration = proc.Duration
	}
	if err != nil {
		result := "launch_error"
		if errors.Is(err, ErrServiceTimeout) {
			result = "timeout"
		} else if !errors.Is(err, ErrLaunch) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", ErrLaunch, err)
		}
		e.metrics.ServiceExecuted(svc.Name, result, sr.Duration.Seconds())
		return sr, nil, err
	}

	// Выходной контракт проверяется до кода завершения:
	// так в логе есть диагностика даже для упавшего процесса.
	res := e.verifier.Verify(svc, domain.DirectionOutbound, proc.Stdout)
	sr.Outbound = string(res.Reason)

	if proc.ExitCode != 0 {
		e.metrics.ServiceExecuted(svc.Name, "exit_error", proc.Duration.Seconds())
		logger.Warn("service exited with non-zero status",
			"exit_code", proc.ExitCode,
			"stderr", truncate(proc.Stderr, maxLoggedStderr),
		)

		err := fmt.Errorf("%w: service %s: exit status %d", ErrNonZeroExit, svc.Name, proc.ExitCode)
		if !res.OK {
			err = errors.Join(err, fmt.Errorf("%w: service %s: %s", ErrOutboundContract, svc.Name, res.Reason))
		}
		return sr, nil, err
	}

	e.metrics.ServiceExecuted(svc.Name, "ok", proc.Duration.Seconds())

	if !res.OK {
		return sr, nil, fmt.Errorf("%w: service %s: %s", ErrOutboundContract, svc.Name, res.Reason)
	}

	logger.Info("service completed",
		"duration", proc.Duration,
		"output_bytes", len(proc.Stdout),
	)
	if len(proc.Stderr) > 0 {
		logger.Debug("service stderr", "stderr", truncate(proc.Stderr, maxLoggedStderr))
	}

	return sr, proc.Stdout, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
