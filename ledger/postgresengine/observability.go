package postgresengine

import (
	"context"
	"math"
	"time"

	"github.com/libledger/library-ledger-go/ledger"
)

const (
	metricOperationsTotal   = "ledger_operations_total"
	metricOperationDuration = "ledger_operation_duration"
	metricDatabaseErrors    = "ledger_database_errors_total"

	spanNamePrefix    = "ledger."
	spanAttrOperation = "operation"

	labelOperation = "operation"
	labelStatus    = "status"
	labelErrorType = "error_type"

	statusOK    = "ok"
	statusError = "error"

	errorTypeQuery = "query"
	errorTypeExec  = "exec"
	errorTypeTx    = "transaction"
)

// observation carries the timing and span state of one mutating operation
// from beginObservation to endObservation.
type observation struct {
	operation string
	start     time.Time
	span      ledger.SpanContext
}

// beginObservation starts the span and the timer for a mutating operation.
func (l *Ledger) beginObservation(ctx context.Context, operation string) (context.Context, *observation) {
	obs := &observation{operation: operation, start: time.Now()}

	if l.tracingCollector != nil {
		ctx, obs.span = l.tracingCollector.StartSpan(
			ctx,
			spanNamePrefix+operation,
			map[string]string{spanAttrOperation: operation},
		)
	}

	return ctx, obs
}

// endObservation finishes the span, records the operation metrics and logs
// the completed operation at info level.
func (l *Ledger) endObservation(ctx context.Context, obs *observation, err error) {
	duration := time.Since(obs.start)

	status := statusOK
	if err != nil {
		status = statusError
	}

	if l.metricsCollector != nil {
		labels := map[string]string{labelOperation: obs.operation, labelStatus: status}
		l.metricsCollector.RecordDuration(metricOperationDuration, duration, labels)
		l.metricsCollector.IncrementCounter(metricOperationsTotal, labels)
	}

	if l.tracingCollector != nil && obs.span != nil {
		l.tracingCollector.FinishSpan(obs.span, status, map[string]string{spanAttrOperation: obs.operation})
	}

	if err == nil {
		l.logOperation(ctx, logMsgOperation+obs.operation, logAttrDurationMS, l.toMilliseconds(duration))
	}
}

// recordDatabaseError counts a database error if the metrics collector is configured.
func (l *Ledger) recordDatabaseError(errorType string) {
	if l.metricsCollector != nil {
		l.metricsCollector.IncrementCounter(metricDatabaseErrors, map[string]string{labelErrorType: errorType})
	}
}

// logQueryWithDuration logs SQL queries with execution time at debug level if a logger is configured.
func (l *Ledger) logQueryWithDuration(ctx context.Context, sqlQuery string, duration time.Duration) {
	switch {
	case l.contextualLogger != nil:
		l.contextualLogger.DebugContext(ctx, logMsgSQLExecuted, logAttrDurationMS, l.toMilliseconds(duration), logAttrQuery, sqlQuery)
	case l.logger != nil:
		l.logger.Debug(logMsgSQLExecuted, logAttrDurationMS, l.toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level if a logger is configured.
func (l *Ledger) logOperation(ctx context.Context, msg string, args ...any) {
	switch {
	case l.contextualLogger != nil:
		l.contextualLogger.InfoContext(ctx, msg, args...)
	case l.logger != nil:
		l.logger.Info(msg, args...)
	}
}

// logWarn logs non-critical issues at warn level if a logger is configured.
func (l *Ledger) logWarn(ctx context.Context, msg string, err error) {
	switch {
	case l.contextualLogger != nil:
		l.contextualLogger.WarnContext(ctx, msg, logAttrError, err.Error())
	case l.logger != nil:
		l.logger.Warn(msg, logAttrError, err.Error())
	}
}

// logError logs error information at the error level if a logger is configured.
func (l *Ledger) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	switch {
	case l.contextualLogger != nil:
		l.contextualLogger.ErrorContext(ctx, msg, allArgs...)
	case l.logger != nil:
		l.logger.Error(msg, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func (l *Ledger) toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
