package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/shaiso/relay/internal/command"
)

// defaultWaitDelay — сколько ждать закрытия stdout/stderr после kill процесса.
const defaultWaitDelay = 5 * time.Second

// Process — результат завершённого процесса.
type Process struct {
	// Stdout — всё, что процесс записал в stdout.
	Stdout []byte

	// Stderr — всё, что процесс записал в stderr.
	Stderr []byte

	// ExitCode — код завершения (-1, если процесс убит или не запустился).
	ExitCode int

	// Duration — время от запуска до завершения.
	Duration time.Duration
}

// Runner запускает процесс сервиса.
//
// Ненулевой код завершения — не ошибка: он возвращается в Process.ExitCode.
// Ошибка означает, что процесс не запустился (ErrLaunch), был убит
// по таймауту (ErrServiceTimeout) или контекст отменён.
type Runner interface {
	Run(ctx context.Context, cmd command.Command, stdin []byte) (*Process, error)
}

// ProcessRunner запускает сервисы как процессы ОС через os/exec.
type ProcessRunner struct {
	// Timeout — максимальное время работы процесса (0 — без ограничения).
	Timeout time.Duration

	// WaitDelay — ожидание I/O после kill (default: 5s).
	WaitDelay time.Duration

	// Dir — рабочая директория процесса ("" — текущая).
	Dir string
}

// Run запускает cmd, передаёт stdin и ждёт завершения.
func (r *ProcessRunner) Run(ctx context.Context, cmd command.Command, stdin []byte) (*Process, error) {
	runCtx := ctx
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer

	c := exec.CommandContext(runCtx, cmd.Path, cmd.Args...)
	c.Dir = r.Dir
	c.Stdin = bytes.NewReader(stdin)
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.WaitDelay = r.WaitDelay
	if c.WaitDelay <= 0 {
		c.WaitDelay = defaultWaitDelay
	}

	start := time.Now()
	err := c.Run()

	proc := &Process{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err == nil {
		return proc, nil
	}

	proc.ExitCode = -1

	// Отмена снаружи важнее таймаута и кода завершения.
	if ctx.Err() != nil {
		return proc, ctx.Err()
	}
	if r.Timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return proc, fmt.Errorf("%w: %s after %s", ErrServiceTimeout, cmd.Path, r.Timeout)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		proc.ExitCode = exitErr.ExitCode()
		return proc, nil
	}

	return proc, fmt.Errorf("%w: %s: %v", ErrLaunch, cmd.Path, err)
}
