package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/relay/internal/domain"
	"github.com/shaiso/relay/internal/store"
)

// ServiceView — сервис в отчёте validate.
type ServiceView struct {
	Name       string `json:"name"`
	Program    string `json:"program,omitempty"`
	Parameters string `json:"parameters,omitempty"`
	Input      string `json:"input,omitempty"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
}

// FlowView — flow в отчёте validate.
type FlowView struct {
	Name     string   `json:"name"`
	Services []string `json:"services"`
	Missing  []string `json:"missing,omitempty"`
}

// Ready возвращает true, если все сервисы flow загружены и flow не пуст.
func (f FlowView) Ready() bool {
	return len(f.Services) > 0 && len(f.Missing) == 0
}

// ValidationReport — итог проверки конфигурации.
type ValidationReport struct {
	ProgramConfig string        `json:"program_config"`
	ProgramError  string        `json:"program_error,omitempty"`
	Services      []ServiceView `json:"services"`
	Flows         []FlowView    `json:"flows"`
}

// OK возвращает true, если программный конфиг и все сервисы загружены.
func (r *ValidationReport) OK() bool {
	if r.ProgramError != "" {
		return false
	}
	for _, svc := range r.Services {
		if svc.Error != "" {
			return false
		}
	}
	return true
}

// Validate загружает конфигурацию в st и собирает отчёт. Ничего не запускает.
func Validate(st *store.Store, programConfig string) *ValidationReport {
	report := &ValidationReport{ProgramConfig: programConfig}

	if _, err := st.LoadProgramConfig(programConfig); err != nil {
		report.ProgramError = err.Error()
	}

	discovery, err := st.DiscoverServices()
	if err != nil && report.ProgramError == "" {
		report.ProgramError = err.Error()
	}

	snapshot := st.Snapshot()

	for name, svc := range snapshot.Services {
		report.Services = append(report.Services, ServiceView{
			Name:       name,
			Program:    svc.Program,
			Parameters: svc.Parameters,
			Input:      describeContract(svc.Input),
			Output:     describeContract(svc.Output),
		})
	}
	if discovery != nil {
		for name, ferr := range discovery.Failed {
			report.Services = append(report.Services, ServiceView{Name: name, Error: ferr.Error()})
		}
	}
	sort.Slice(report.Services, func(i, j int) bool {
		return report.Services[i].Name < report.Services[j].Name
	})

	for _, flow := range snapshot.Flows {
		view := FlowView{Name: flow.Name, Services: flow.Services}
		for _, name := range flow.Services {
			if _, ok := snapshot.Service(name); !ok {
				view.Missing = append(view.Missing, name)
			}
		}
		report.Flows = append(report.Flows, view)
	}

	return report
}

// describeContract форматирует контракт: "number", "time (%Y-%m-%d)", "".
func describeContract(c *domain.Contract) string {
	if !c.IsConfigured() {
		return ""
	}
	if c.Format != "" {
		return fmt.Sprintf("%s (%s)", c.Type, c.Format)
	}
	return c.Type
}

// NewValidateCmd создаёт команду `validate`: проверка конфигурации без запуска.
func NewValidateCmd(storeFn func() *store.Store, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate [flow-config]",
		Short: "Load and verify configuration without running anything",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			report := Validate(storeFn(), ProgramConfigArg(args))

			if out.JSONMode() {
				if err := out.JSON(report); err != nil {
					return err
				}
			} else if err := printValidation(out, report); err != nil {
				return err
			}

			if !report.OK() {
				return ErrInvalidConfig
			}
			out.Success("configuration is valid")
			return nil
		},
	}
}

func printValidation(out *Output, report *ValidationReport) error {
	if report.ProgramError != "" {
		out.Error(report.ProgramError)
	}

	out.Section("services")
	rows := make([][]string, len(report.Services))
	for i, svc := range report.Services {
		status := "ok"
		if svc.Error != "" {
			status = "error: " + svc.Error
		}
		rows[i] = []string{svc.Name, dash(svc.Program), dash(svc.Input), dash(svc.Output), status}
	}
	if err := out.Table([]string{"NAME", "PROGRAM", "INPUT", "OUTPUT", "STATUS"}, rows); err != nil {
		return err
	}

	out.Section("flows")
	rows = make([][]string, len(report.Flows))
	for i, flow := range report.Flows {
		status := "ready"
		switch {
		case len(flow.Services) == 0:
			status = "empty"
		case len(flow.Missing) > 0:
			status = "missing: " + strings.Join(flow.Missing, ", ")
		}
		rows[i] = []string{flow.Name, strings.Join(flow.Services, " -> "), status}
	}
	return out.Table([]string{"NAME", "SERVICES", "STATUS"}, rows)
}
