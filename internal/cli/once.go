package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/relay/internal/domain"
	"github.com/shaiso/relay/internal/orchestrator"
	"github.com/shaiso/relay/internal/store"
)

// CycleFunc выполняет один цикл на программном конфиге programConfig.
type CycleFunc func(ctx context.Context, programConfig string) (*orchestrator.CycleReport, error)

// runView — результат flow для вывода.
type runView struct {
	RunID         string `json:"run_id"`
	Flow          string `json:"flow"`
	Status        string `json:"status"`
	FailedService string `json:"failed_service,omitempty"`
	Error         string `json:"error,omitempty"`
	DurationMS    int64  `json:"duration_ms"`
}

func newRunView(run *domain.FlowRun) runView {
	return runView{
		RunID:         run.ID.String(),
		Flow:          run.Flow,
		Status:        run.Status.String(),
		FailedService: run.FailedService,
		Error:         run.Error(),
		DurationMS:    run.Duration().Milliseconds(),
	}
}

// NewOnceCmd создаёт команду `once`: один цикл и выход.
func NewOnceCmd(cycleFn CycleFunc, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "once [flow-config]",
		Short: "Run every flow once and exit",
		Long: "Reloads configuration, runs every declared flow once and prints the results.\n" +
			"Exits with status 1 if any flow failed.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			report, err := cycleFn(cmd.Context(), ProgramConfigArg(args))
			if err != nil {
				return err
			}

			views := make([]runView, len(report.Runs))
			rows := make([][]string, len(report.Runs))
			for i, run := range report.Runs {
				views[i] = newRunView(run)
				rows[i] = []string{
					run.Flow,
					run.Status.String(),
					dash(run.FailedService),
					run.Duration().Round(time.Millisecond).String(),
					dash(run.Error()),
				}
			}

			if err := out.Print([]string{"FLOW", "STATUS", "FAILED_SERVICE", "DURATION", "ERROR"}, rows, views); err != nil {
				return err
			}

			if !report.OK() {
				return fmt.Errorf("%w: %d of %d", ErrFlowsFailed, report.Failed(), len(report.Runs))
			}
			return nil
		},
	}
}

// ProgramConfigArg возвращает путь к программному конфигу из аргументов
// или путь по умолчанию.
func ProgramConfigArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return store.DefaultProgramConfig
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
