// Package scheduler выдаёт оркестратору сигнал "пора запускать цикл".
//
// Trigger ждёт следующего времени по cron-расписанию
// (по умолчанию начало каждой минуты) или внешнего Kick
// (например, сообщения flow.trigger из RabbitMQ).
//
// Структура:
//   - trigger.go — Trigger (Wait, Kick)
//   - cron.go    — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	trig, err := scheduler.New(scheduler.Config{
//	    Expr:   "* * * * *",
//	    Logger: logger,
//	})
//
//	for {
//	    if err := trig.Wait(ctx); err != nil {
//	        return // ctx отменён
//	    }
//	    runCycle()
//	}
package scheduler
