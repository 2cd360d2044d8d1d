package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/shaiso/relay/internal/command"
	"github.com/shaiso/relay/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner записывает вызовы и отдаёт заранее заданные результаты по имени программы.
type fakeRunner struct {
	calls   []command.Command
	stdins  [][]byte
	results map[string]fakeResult
}

type fakeResult struct {
	stdout   string
	exitCode int
	err      error
}

func (f *fakeRunner) Run(_ context.Context, cmd command.Command, stdin []byte) (*Process, error) {
	f.calls = append(f.calls, cmd)
	f.stdins = append(f.stdins, stdin)

	res := f.results[cmd.Path]
	if res.err != nil {
		return &Process{ExitCode: -1}, res.err
	}
	return &Process{Stdout: []byte(res.stdout), ExitCode: res.exitCode, Duration: time.Millisecond}, nil
}

func numberContract() *domain.Contract {
	return &domain.Contract{Type: "number"}
}

func newConfig(flows []domain.Flow, services ...*domain.Service) *domain.Configuration {
	cfg := domain.NewConfiguration()
	for _, svc := range services {
		cfg.Services[svc.Name] = svc
	}
	cfg.Flows = flows
	return cfg
}

func newTestExecutor(runner Runner, servicesDir string) *Executor {
	return New(Config{
		Runner:      runner,
		ServicesDir: servicesDir,
		Logger:      testLogger(),
	})
}

// --- Readiness ---

func TestRun_Readiness(t *testing.T) {
	a := &domain.Service{Name: "a", Program: "prog-a"}

	tests := []struct {
		name       string
		cfg        *domain.Configuration
		flow       string
		wantErr    error
		wantFailed string
	}{
		{
			name:    "unknown flow",
			cfg:     newConfig(nil, a),
			flow:    "nope",
			wantErr: ErrFlowNotFound,
		},
		{
			name:    "empty flow",
			cfg:     newConfig([]domain.Flow{{Name: "f", Services: []string{}}}, a),
			flow:    "f",
			wantErr: ErrEmptyFlow,
		},
		{
			name:       "missing service",
			cfg:        newConfig([]domain.Flow{{Name: "f", Services: []string{"a", "ghost", "phantom"}}}, a),
			flow:       "f",
			wantErr:    ErrServiceNotReady,
			wantFailed: "ghost",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			run := newTestExecutor(runner, "services").Run(context.Background(), tt.cfg, tt.flow)

			if run.Status != domain.RunStatusFailed {
				t.Fatalf("expected FAILED, got %s", run.Status)
			}
			if !errors.Is(run.Err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, run.Err)
			}
			if run.FailedService != tt.wantFailed {
				t.Errorf("expected failed service %q, got %q", tt.wantFailed, run.FailedService)
			}
			if len(runner.calls) != 0 {
				t.Errorf("no process should be launched, got %d", len(runner.calls))
			}
			if !run.IsFinished() {
				t.Error("run should be finished")
			}
		})
	}
}

// --- Chain ---

func TestRun_PipesOutputToNextService(t *testing.T) {
	producer := &domain.Service{Name: "producer", Program: "produce", Output: numberContract()}
	consumer := &domain.Service{Name: "consumer", Program: "consume", Parameters: "--value $$", Input: numberContract()}

	runner := &fakeRunner{results: map[string]fakeResult{
		"produce": {stdout: `{"data": 42}`},
		"consume": {stdout: `{"data": "done"}`},
	}}

	cfg := newConfig([]domain.Flow{{Name: "pipe", Services: []string{"producer", "consumer"}}}, producer, consumer)
	run := newTestExecutor(runner, "services").Run(context.Background(), cfg, "pipe")

	if !run.Succeeded() {
		t.Fatalf("expected success, got %s: %v", run.Status, run.Err)
	}
	if len(runner.calls) != 2 {
		t.Fatalf("expected 2 launches, got %d", len(runner.calls))
	}

	// первый сервис получает пустой stdin
	if len(runner.stdins[0]) != 0 {
		t.Errorf("first service stdin should be empty, got %q", runner.stdins[0])
	}

	// второй получает output первого и в stdin, и в $$
	if string(runner.stdins[1]) != `{"data": 42}` {
		t.Errorf("unexpected stdin: %q", runner.stdins[1])
	}
	wantArgs := []string{"--value", `{"data": 42}`}
	if got := runner.calls[1].Args; len(got) != 2 || got[0] != wantArgs[0] || got[1] != wantArgs[1] {
		t.Errorf("expected args %q, got %q", wantArgs, got)
	}

	if string(run.Output) != `{"data": "done"}` {
		t.Errorf("unexpected flow output: %q", run.Output)
	}
	if len(run.Services) != 2 {
		t.Fatalf("expected 2 service runs, got %d", len(run.Services))
	}
	if run.Services[1].Inbound != "ok" {
		t.Errorf("expected inbound ok, got %q", run.Services[1].Inbound)
	}
}

func TestRun_InboundFailureSkipsLaunch(t *testing.T) {
	a := &domain.Service{Name: "a", Program: "prog-a"}
	b := &domain.Service{Name: "b", Program: "prog-b", Input: numberContract()}

	runner := &fakeRunner{results: map[string]fakeResult{
		"prog-a": {stdout: `{"data": "42"}`},
	}}

	cfg := newConfig([]domain.Flow{{Name: "f", Services: []string{"a", "b"}}}, a, b)
	run := newTestExecutor(runner, "services").Run(context.Background(), cfg, "f")

	if run.Status != domain.RunStatusFailed {
		t.Fatalf("expected FAILED, got %s", run.Status)
	}
	if !errors.Is(run.Err, ErrInboundContract) {
		t.Errorf("expected ErrInboundContract, got %v", run.Err)
	}
	if run.FailedService != "b" {
		t.Errorf("expected failed service b, got %q", run.FailedService)
	}
	if len(runner.calls) != 1 {
		t.Errorf("service b must not be launched, got %d launches", len(runner.calls))
	}
}

func TestRun_FailureStopsChain(t *testing.T) {
	tests := []struct {
		name     string
		result   fakeResult
		output   *domain.Contract
		wantErrs []error
		notErr   error
	}{
		{
			name:     "non-zero exit",
			result:   fakeResult{stdout: `{"data": 1}`, exitCode: 3},
			output:   numberContract(),
			wantErrs: []error{ErrNonZeroExit},
			notErr:   ErrOutboundContract,
		},
		{
			name:     "non-zero exit and bad output",
			result:   fakeResult{stdout: `oops`, exitCode: 1},
			output:   numberContract(),
			wantErrs: []error{ErrNonZeroExit, ErrOutboundContract},
		},
		{
			name:     "bad output",
			result:   fakeResult{stdout: `{"data": true}`},
			output:   numberContract(),
			wantErrs: []error{ErrOutboundContract},
			notErr:   ErrNonZeroExit,
		},
		{
			name:     "launch error",
			result:   fakeResult{err: errors.New("exec format error")},
			wantErrs: []error{ErrLaunch},
		},
		{
			name:     "timeout",
			result:   fakeResult{err: ErrServiceTimeout},
			wantErrs: []error{ErrServiceTimeout},
			notErr:   ErrLaunch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &domain.Service{Name: "a", Program: "prog-a", Output: tt.output}
			b := &domain.Service{Name: "b", Program: "prog-b"}

			runner := &fakeRunner{results: map[string]fakeResult{"prog-a": tt.result}}
			cfg := newConfig([]domain.Flow{{Name: "f", Services: []string{"a", "b"}}}, a, b)

			run := newTestExecutor(runner, "services").Run(context.Background(), cfg, "f")

			if run.Status != domain.RunStatusFailed {
				t.Fatalf("expected FAILED, got %s", run.Status)
			}
			for _, want := range tt.wantErrs {
				if !errors.Is(run.Err, want) {
					t.Errorf("expected %v in %v", want, run.Err)
				}
			}
			if tt.notErr != nil && errors.Is(run.Err, tt.notErr) {
				t.Errorf("did not expect %v in %v", tt.notErr, run.Err)
			}
			if run.FailedService != "a" {
				t.Errorf("expected failed service a, got %q", run.FailedService)
			}
			if len(runner.calls) != 1 {
				t.Errorf("expected chain to stop after a, got %d launches", len(runner.calls))
			}
		})
	}
}

func TestRun_CommandBuildError(t *testing.T) {
	a := &domain.Service{Name: "a", Program: "prog-a", Parameters: `"unterminated`}

	runner := &fakeRunner{}
	cfg := newConfig([]domain.Flow{{Name: "f", Services: []string{"a"}}}, a)

	run := newTestExecutor(runner, "services").Run(context.Background(), cfg, "f")

	if !errors.Is(run.Err, ErrCommandBuild) {
		t.Errorf("expected ErrCommandBuild, got %v", run.Err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("expected no launches, got %d", len(runner.calls))
	}
}

func TestRun_CancelledContext(t *testing.T) {
	a := &domain.Service{Name: "a", Program: "prog-a"}

	runner := &fakeRunner{}
	cfg := newConfig([]domain.Flow{{Name: "f", Services: []string{"a"}}}, a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := newTestExecutor(runner, "services").Run(ctx, cfg, "f")

	if !errors.Is(run.Err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", run.Err)
	}
	if len(runner.calls) != 0 {
		t.Errorf("expected no launches, got %d", len(runner.calls))
	}
}

// --- Real processes ---

// writeScript создаёт исполняемый скрипт services/<service>/<file>.
func writeScript(t *testing.T, servicesDir, service, file, body string) {
	t.Helper()

	dir := filepath.Join(servicesDir, service)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, file), []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("requires /bin/sh")
	}
}

func TestRun_ProcessChain(t *testing.T) {
	skipWithoutShell(t)

	tests := []struct {
		name        string
		produced    string
		wantSuccess bool
	}{
		{name: "number passes", produced: `{"data": 42}`, wantSuccess: true},
		{name: "numeric string fails", produced: `{"data": "42"}`, wantSuccess: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			servicesDir := t.TempDir()
			marker := filepath.Join(t.TempDir(), "consumer-ran")

			writeScript(t, servicesDir, "producer", "emit.sh", `printf '%s' '`+tt.produced+`'`)
			writeScript(t, servicesDir, "consumer", "echo.sh", `touch "`+marker+`"; printf '%s' "$1"`)

			producer := &domain.Service{Name: "producer", Program: "./emit.sh"}
			consumer := &domain.Service{Name: "consumer", Program: "./echo.sh", Parameters: "$$", Input: numberContract(), Output: numberContract()}

			cfg := newConfig([]domain.Flow{{Name: "e2e", Services: []string{"producer", "consumer"}}}, producer, consumer)
			exec := newTestExecutor(&ProcessRunner{Timeout: 10 * time.Second}, servicesDir)

			run := exec.Run(context.Background(), cfg, "e2e")

			_, statErr := os.Stat(marker)
			consumerRan := statErr == nil

			if tt.wantSuccess {
				if !run.Succeeded() {
					t.Fatalf("expected success, got %v", run.Err)
				}
				if string(run.Output) != tt.produced {
					t.Errorf("expected output %q, got %q", tt.produced, run.Output)
				}
				if !consumerRan {
					t.Error("consumer should have run")
				}
				return
			}

			if !errors.Is(run.Err, ErrInboundContract) {
				t.Fatalf("expected ErrInboundContract, got %v", run.Err)
			}
			if consumerRan {
				t.Error("consumer must not run on inbound contract failure")
			}
		})
	}
}

func TestProcessRunner(t *testing.T) {
	skipWithoutShell(t)

	t.Run("stdin and exit code", func(t *testing.T) {
		r := &ProcessRunner{}
		proc, err := r.Run(context.Background(), command.Command{
			Path: "/bin/sh",
			Args: []string{"-c", `cat; echo oops >&2; exit 7`},
		}, []byte("hello"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if proc.ExitCode != 7 {
			t.Errorf("expected exit code 7, got %d", proc.ExitCode)
		}
		if string(proc.Stdout) != "hello" {
			t.Errorf("expected stdout hello, got %q", proc.Stdout)
		}
		if string(proc.Stderr) != "oops\n" {
			t.Errorf("unexpected stderr %q", proc.Stderr)
		}
	})

	t.Run("missing program", func(t *testing.T) {
		r := &ProcessRunner{}
		_, err := r.Run(context.Background(), command.Command{
			Path: filepath.Join(t.TempDir(), "does-not-exist"),
		}, nil)
		if !errors.Is(err, ErrLaunch) {
			t.Errorf("expected ErrLaunch, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		r := &ProcessRunner{Timeout: 100 * time.Millisecond, WaitDelay: 100 * time.Millisecond}
		start := time.Now()
		_, err := r.Run(context.Background(), command.Command{
			Path: "/bin/sh",
			Args: []string{"-c", "sleep 10"},
		}, nil)
		if !errors.Is(err, ErrServiceTimeout) {
			t.Errorf("expected ErrServiceTimeout, got %v", err)
		}
		if time.Since(start) > 5*time.Second {
			t.Errorf("timeout took too long: %s", time.Since(start))
		}
	})

	t.Run("parent cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		r := &ProcessRunner{Timeout: time.Second}
		_, err := r.Run(ctx, command.Command{Path: "/bin/sh", Args: []string{"-c", "true"}}, nil)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestRun_SingleServiceOutboundContract(t *testing.T) {
	skipWithoutShell(t)

	tests := []struct {
		name    string
		emitted string
		wantErr error
	}{
		{name: "number", emitted: `{"data": 42}`},
		{name: "numeric string", emitted: `{"data": "42"}`, wantErr: ErrOutboundContract},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			servicesDir := t.TempDir()
			writeScript(t, servicesDir, "svc_echo_num", "run.sh", `printf '%s' '`+tt.emitted+`'`)

			svc := &domain.Service{Name: "svc_echo_num", Program: "./run.sh", Output: numberContract()}
			cfg := newConfig([]domain.Flow{{Name: "single", Services: []string{"svc_echo_num"}}}, svc)

			run := newTestExecutor(&ProcessRunner{}, servicesDir).Run(context.Background(), cfg, "single")

			if tt.wantErr == nil {
				if !run.Succeeded() {
					t.Fatalf("expected success, got %v", run.Err)
				}
				if string(run.Output) != tt.emitted {
					t.Errorf("expected output %q, got %q", tt.emitted, run.Output)
				}
				return
			}

			if run.Succeeded() {
				t.Fatal("expected failure")
			}
			if !errors.Is(run.Err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, run.Err)
			}
			if run.Output != nil {
				t.Errorf("failed run should have no output, got %q", run.Output)
			}
		})
	}
}
