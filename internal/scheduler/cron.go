package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSchedule — начало каждой минуты.
const DefaultSchedule = "* * * * *"

// cronParser — парсер cron-выражений (5 полей) и дескрипторов (@hourly, @every 30s).
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule разбирает cron-выражение или дескриптор.
func ParseSchedule(expr string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return schedule, nil
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// NextDue вычисляет следующее время запуска после from в часовом поясе loc.
// nil loc означает time.Local.
func NextDue(schedule cron.Schedule, from time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return schedule.Next(from.In(loc))
}
