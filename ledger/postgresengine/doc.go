// Package postgresengine provides the PostgreSQL-backed ledger engine.
//
// The engine persists the catalog, borrow state, user registry, treasury and
// journal in PostgreSQL and executes every mutating operation inside a single
// database transaction. Row locks on the owner and book rows serialize
// conflicting mutations, so the engine is safe for concurrent use from
// multiple processes sharing one database.
//
// It supports multiple database connection types through constructor functions:
// NewLedgerFromPGXPool (pgxpool.Pool), NewLedgerFromSQLDB (sql.DB), and
// NewLedgerFromSQLX (sqlx.DB). Observability is optional and dependency-free:
// bring your own Logger, MetricsCollector, TracingCollector or
// ContextualLogger implementation via the functional options.
package postgresengine
