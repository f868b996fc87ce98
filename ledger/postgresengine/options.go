package postgresengine

import (
	"github.com/libledger/library-ledger-go/ledger"
)

// Option defines a functional option for configuring the Ledger.
type Option func(*Ledger) error

// WithTablePrefix sets the table name prefix for all ledger tables.
func WithTablePrefix(tablePrefix string) Option {
	return func(l *Ledger) error {
		if tablePrefix == "" {
			return ledger.ErrEmptyTablePrefix
		}

		l.tablePrefix = tablePrefix

		return nil
	}
}

// WithLogger sets the logger for the Ledger.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL queries with execution timing (development use)
// Info level: completed operations with durations (production-safe)
// Warn level: non-critical issues like rollback or cleanup failures
// Error level: critical failures that cause operation failures.
func WithLogger(logger ledger.Logger) Option {
	return func(l *Ledger) error {
		l.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Ledger.
// The contextual logger receives the same messages as the plain logger but
// with context information, enabling automatic trace/span correlation when
// tracing is enabled. When both loggers are configured the contextual one wins.
func WithContextualLogger(logger ledger.ContextualLogger) Option {
	return func(l *Ledger) error {
		l.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Ledger.
// The metrics collector will receive operation counts and durations as well
// as database error counts.
func WithMetrics(collector ledger.MetricsCollector) Option {
	return func(l *Ledger) error {
		l.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector for the Ledger.
// The tracing collector will receive one span per mutating operation.
func WithTracing(collector ledger.TracingCollector) Option {
	return func(l *Ledger) error {
		l.tracingCollector = collector
		return nil
	}
}

// WithClock sets the time source used to timestamp journal records and user
// registrations. Mostly useful for tests.
func WithClock(clock ledger.Clock) Option {
	return func(l *Ledger) error {
		l.clock = clock
		return nil
	}
}

// WithFundsTransferer sets the outward payment channel used by WithdrawFunds.
// Without one, withdrawals only move the ledger balance.
func WithFundsTransferer(transferer ledger.FundsTransferer) Option {
	return func(l *Ledger) error {
		l.fundsTransferer = transferer
		return nil
	}
}
