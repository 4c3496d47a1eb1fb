// Package utils holds small helpers shared across packages.
package utils

import (
	"time"

	"github.com/rs/zerolog"
)

// Durations above which a finished operation is logged louder than debug.
const (
	slowOperation     = 30 * time.Second
	longOperation     = 10 * time.Second
	slowDatabaseQuery = 5 * time.Second
)

// Timer measures one named operation.
type Timer struct {
	start time.Time
	name  string
	log   zerolog.Logger
}

// NewTimer starts a timer for the named operation.
func NewTimer(name string, log zerolog.Logger) *Timer {
	return &Timer{start: time.Now(), name: name, log: log}
}

// Stop logs the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	return t.StopWithContext(nil)
}

// StopWithContext logs the elapsed time together with the given fields and returns it.
func (t *Timer) StopWithContext(fields map[string]interface{}) time.Duration {
	elapsed := time.Since(t.start)

	event := t.log.Debug().
		Str("operation", t.name).
		Dur("duration_ms", elapsed).
		Float64("duration_seconds", elapsed.Seconds())
	if len(fields) > 0 {
		event = event.Fields(fields)
	}
	event.Msg("Performance measurement")

	warnIfSlow(t.log, "operation", t.name, elapsed)
	return elapsed
}

// OperationTimer is the defer form of Timer:
//
//	defer utils.OperationTimer("frontier_recompute", log)()
func OperationTimer(operation string, log zerolog.Logger) func() {
	start := time.Now()
	return func() {
		elapsed := time.Since(start)
		log.Debug().
			Str("operation", operation).
			Dur("duration_ms", elapsed).
			Msg("Operation completed")
		warnIfSlow(log, "operation", operation, elapsed)
	}
}

// MeasureDBQuery times a query; call the returned func with the affected row count.
func MeasureDBQuery(queryName string, log zerolog.Logger) func(rowsAffected int64) {
	start := time.Now()
	return func(rowsAffected int64) {
		elapsed := time.Since(start)
		log.Debug().
			Str("query", queryName).
			Dur("duration_ms", elapsed).
			Int64("rows_affected", rowsAffected).
			Msg("Database query completed")

		if elapsed > slowDatabaseQuery {
			log.Warn().
				Str("query", queryName).
				Dur("duration", elapsed).
				Int64("rows_affected", rowsAffected).
				Msg("Slow database query detected")
		}
	}
}

func warnIfSlow(log zerolog.Logger, key, name string, elapsed time.Duration) {
	switch {
	case elapsed > slowOperation:
		log.Warn().Str(key, name).Dur("duration", elapsed).Msg("Slow operation detected")
	case elapsed > longOperation:
		log.Info().Str(key, name).Dur("duration", elapsed).Msg("Operation took longer than expected")
	}
}
