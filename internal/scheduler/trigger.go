package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger — сигнал запуска цикла по cron-расписанию или по Kick.
type Trigger struct {
	expr     string
	schedule cron.Schedule
	loc      *time.Location

	// kick — буфер на один сигнал: несколько Kick между циклами
	// схлопываются в один запуск.
	kick chan struct{}

	logger *slog.Logger
}

// Config — конфигурация Trigger.
type Config struct {
	// Expr — cron-выражение или дескриптор (default: "* * * * *").
	Expr string

	// Location — часовой пояс расписания (default: time.Local).
	Location *time.Location

	Logger *slog.Logger
}

// New создаёт Trigger.
func New(cfg Config) (*Trigger, error) {
	expr := cfg.Expr
	if expr == "" {
		expr = DefaultSchedule
	}

	schedule, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Trigger{
		expr:     expr,
		schedule: schedule,
		loc:      loc,
		kick:     make(chan struct{}, 1),
		logger:   logger,
	}, nil
}

// Expr возвращает cron-выражение.
func (t *Trigger) Expr() string {
	return t.expr
}

// Next возвращает время следующего запуска после from.
func (t *Trigger) Next(from time.Time) time.Time {
	return NextDue(t.schedule, from, t.loc)
}

// Wait блокируется до следующего времени по расписанию, Kick или отмены ctx.
func (t *Trigger) Wait(ctx context.Context) error {
	next := t.Next(time.Now())

	t.logger.Debug("waiting for next cycle", "next", next, "schedule", t.expr)

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	case <-t.kick:
		t.logger.Info("cycle triggered externally")
		return nil
	}
}

// Kick запрашивает внеочередной цикл.
// Возвращает false, если запрос уже ожидает обработки.
func (t *Trigger) Kick() bool {
	select {
	case t.kick <- struct{}{}:
		return true
	default:
		return false
	}
}
