package sqliteengine

import (
	"github.com/libledger/library-ledger-go/ledger"
)

// Option defines a functional option for configuring the Ledger.
type Option func(*Ledger) error

// WithLogger sets the logger for the Ledger.
func WithLogger(logger ledger.Logger) Option {
	return func(l *Ledger) error {
		l.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the Ledger.
func WithMetrics(collector ledger.MetricsCollector) Option {
	return func(l *Ledger) error {
		l.metricsCollector = collector
		return nil
	}
}

// WithClock overrides the time source used for registration dates and
// journal record timestamps. Intended for tests.
func WithClock(clock ledger.Clock) Option {
	return func(l *Ledger) error {
		l.clock = clock
		return nil
	}
}

// WithFundsTransferer sets the collaborator that receives the payout on
// WithdrawFunds. Without one, withdrawals only zero the stored balance.
func WithFundsTransferer(transferer ledger.FundsTransferer) Option {
	return func(l *Ledger) error {
		l.fundsTransferer = transferer
		return nil
	}
}
