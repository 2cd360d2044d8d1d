// relay — оркестратор flows: цепочек внешних программ,
// передающих друг другу JSON через stdout/stdin.
//
// Использование:
//
//	relay [flow-config]            цикл по расписанию до SIGINT/SIGTERM
//	relay once [flow-config]       один цикл, exit 1 при упавшем flow
//	relay validate [flow-config]   проверка конфигурации
//	relay kick                     внеочередной цикл через RabbitMQ
//
// flow-config по умолчанию — ifttt.json. Настройки — переменные окружения
// (см. internal/settings), опционально из файла .env.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/shaiso/relay/internal/cli"
	"github.com/shaiso/relay/internal/executor"
	"github.com/shaiso/relay/internal/mq"
	"github.com/shaiso/relay/internal/orchestrator"
	"github.com/shaiso/relay/internal/scheduler"
	"github.com/shaiso/relay/internal/settings"
	"github.com/shaiso/relay/internal/store"
	"github.com/shaiso/relay/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	logger := telemetry.SetupLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cfg *settings.Settings
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "relay [flow-config]",
		Short:         "relay — runs chains of programs that pass JSON to each other",
		Version:       version,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = settings.Load(".env")
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd.Context(), cfg, logger, cli.ProgramConfigArg(args))
		},
	}

	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	cycleFn := func(ctx context.Context, programConfig string) (*orchestrator.CycleReport, error) {
		return orchestrator.New(newOrchestratorConfig(cfg, logger, nil, programConfig)).Cycle(ctx)
	}

	storeFn := func() *store.Store {
		return store.New(store.Config{ServicesDir: cfg.ServicesDir, Logger: logger})
	}

	requesterFn := func(context.Context) (cli.CycleRequester, func(), error) {
		if !cfg.BrokerEnabled() {
			return nil, nil, fmt.Errorf("%s is not set", settings.EnvRabbitMQURL)
		}
		conn, err := mq.Dial(cfg.RabbitMQURL, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := mq.SetupTopology(conn); err != nil {
			conn.Close()
			return nil, nil, err
		}
		return mq.NewPublisher(conn, logger), func() { conn.Close() }, nil
	}

	onceCmd := cli.NewOnceCmd(cycleFn, outputFn)
	onceCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	validateCmd := cli.NewValidateCmd(storeFn, outputFn)
	validateCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	rootCmd.AddCommand(onceCmd, validateCmd, cli.NewKickCmd(requesterFn, outputFn))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// runDaemon запускает циклы по расписанию до отмены ctx.
func runDaemon(ctx context.Context, cfg *settings.Settings, logger *slog.Logger, programConfig string) error {
	logger.Info("starting relay",
		"version", version,
		"program_config", programConfig,
		"services_dir", cfg.ServicesDir,
		"schedule", cfg.Schedule,
	)

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	if cfg.MetricsAddr != "" {
		srv := telemetry.NewServer(cfg.MetricsAddr, prometheus.DefaultGatherer, logger)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	trigger, err := scheduler.New(scheduler.Config{
		Expr:     cfg.Schedule,
		Location: cfg.Location,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	orchCfg := newOrchestratorConfig(cfg, logger, metrics, programConfig)
	orchCfg.Trigger = trigger

	// RabbitMQ опционален: без него relay работает только по расписанию
	if cfg.BrokerEnabled() {
		conn, err := mq.Dial(cfg.RabbitMQURL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, running in schedule-only mode", "error", err)
		} else {
			defer conn.Close()

			if err := mq.SetupTopology(conn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			logger.Debug(mq.TopologyInfo())

			orchCfg.Notifier = mq.NewPublisher(conn, logger)

			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Queue:   mq.QueueFlowsTrigger,
				Handler: mq.TriggerHandler(trigger, logger),
			})
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("trigger consumer stopped", "error", err)
				}
			}()
		}
	}

	if err := orchestrator.New(orchCfg).Run(ctx); err != nil {
		return err
	}

	logger.Info("relay stopped")
	return nil
}

// newOrchestratorConfig собирает Store и Executor из настроек.
// Trigger и Notifier заполняет вызывающий.
func newOrchestratorConfig(cfg *settings.Settings, logger *slog.Logger, metrics *telemetry.Metrics, programConfig string) orchestrator.Config {
	st := store.New(store.Config{
		ServicesDir: cfg.ServicesDir,
		Logger:      logger,
		Metrics:     metrics,
	})

	exec := executor.New(executor.Config{
		Runner:      &executor.ProcessRunner{Timeout: cfg.ServiceTimeout},
		ServicesDir: cfg.ServicesDir,
		Logger:      logger,
		Metrics:     metrics,
	})

	return orchestrator.Config{
		Source:        st,
		Runner:        exec,
		ProgramConfig: programConfig,
		Concurrency:   cfg.FlowConcurrency,
		RunOnStart:    cfg.RunOnStart,
		Logger:        logger,
		Metrics:       metrics,
	}
}
